package ai

// Level is how much of the extraction the model is asked to redo
type Level string

// Fallback levels
const (
	LevelFast       Level = "fast"
	LevelDetailed   Level = "detailed"
	LevelAggressive Level = "aggressive"
)

// Thresholds drive level selection
type Thresholds struct {
	Fast       float64 `mapstructure:"fast_level"`
	Aggressive float64 `mapstructure:"aggressive_level"`
}

// DefaultThresholds returns the stock level thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{Fast: 0.2, Aggressive: 0.05}
}

// SelectLevel picks a level from the partial result already observed. A partial with a title
// and some confidence only needs light augmentation; a page with nothing usable is
// re-extracted from its raw text.
func (t Thresholds) SelectLevel(confidence float64, hasTitle, hasCandidate bool) Level {
	switch {
	case !hasCandidate || confidence < t.Aggressive:
		return LevelAggressive
	case confidence > t.Fast && hasTitle:
		return LevelFast
	default:
		return LevelDetailed
	}
}
