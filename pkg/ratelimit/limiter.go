// Package ratelimit enforces rolling hourly and calendar-day ceilings per user and action.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/metrics"
)

// Action is a rate limited operation
type Action string

// Limited actions
const (
	ActionImport     Action = "import"
	ActionConversion Action = "conversion"
)

const (
	window    = time.Hour
	recordTTL = 7 * 24 * time.Hour
	dateFmt   = "2006-01-02"
)

// ErrRateLimited marks a rejected request. It is not a system failure.
var ErrRateLimited = errors.New("rate limit exceeded")

// Key identifies a limit record
type Key struct {
	UserID string
	Action Action
}

// Info is the persisted rolling-window state for one Key
type Info struct {
	Timestamps    []time.Time
	DailyCount    int
	LastResetDate string
	ExpiresAt     time.Time
	Version       int64
}

// Store loads and persists Info atomically. fn runs with the current record (zero value
// when absent) and the mutated record is saved when fn returns nil.
type Store interface {
	Update(ctx context.Context, key Key, fn func(*Info) error) error
	Close() error
}

// Cleaner is implemented by stores that do not expire records on their own
type Cleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// Limit holds the ceilings for one action. Zero or negative disables a ceiling.
type Limit struct {
	Hourly int `mapstructure:"hourly" yaml:"hourly"`
	Daily  int `mapstructure:"daily" yaml:"daily"`
}

// Limits maps actions to their ceilings
type Limits map[Action]Limit

// DefaultLimits returns the ceilings for an environment; unknown environments get production values
func DefaultLimits(environment string) Limits {
	switch environment {
	case "development":
		return Limits{
			ActionConversion: {Hourly: 50, Daily: 500},
			ActionImport:     {Hourly: 200, Daily: 2000},
		}
	case "staging":
		return Limits{
			ActionConversion: {Hourly: 20, Daily: 100},
			ActionImport:     {Hourly: 60, Daily: 300},
		}
	default:
		return Limits{
			ActionConversion: {Hourly: 5, Daily: 20},
			ActionImport:     {Hourly: 30, Daily: 100},
		}
	}
}

// Decision is the outcome of a Check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Scope      string
	Message    string
	// Remaining requests in the current hour after this one
	Remaining int
}

// Err returns nil for an allowed decision, otherwise a *LimitError
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{Decision: d}
}

// LimitError is a rejected Decision. It wraps ErrRateLimited.
type LimitError struct {
	Decision Decision
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRateLimited, e.Decision.Message)
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterMinutes returns the wait before the next allowed request
func (e *LimitError) RetryAfterMinutes() int {
	return e.Decision.RetryAfterMinutes()
}

// RetryAfterMinutes returns RetryAfter in whole minutes
func (d Decision) RetryAfterMinutes() int {
	return int(d.RetryAfter / time.Minute)
}

// Limiter checks requests against Limits using a Store
type Limiter struct {
	store    Store
	limits   Limits
	location *time.Location
	now      func() time.Time
}

// NewLimiter creates a limiter. Daily counters roll over at local midnight.
func NewLimiter(store Store, limits Limits) *Limiter {
	return &Limiter{
		store:    store,
		limits:   limits,
		location: time.Local,
		now:      time.Now,
	}
}

// Check records a request for userID/action if it fits within the ceilings. The load,
// evaluate and persist steps run as one atomic store update.
func (l *Limiter) Check(ctx context.Context, userID string, action Action) (Decision, error) {
	limit, ok := l.limits[action]
	if !ok {
		return Decision{}, fmt.Errorf("unknown rate limit action %q", action)
	}

	now := l.now()
	var decision Decision
	err := l.store.Update(ctx, Key{UserID: userID, Action: action}, func(info *Info) error {
		decision = evaluate(info, limit, action, now, l.location)
		return nil
	})
	if err != nil {
		metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "error").Inc()
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	if decision.Allowed {
		metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "allowed").Inc()
	} else {
		metrics.RateLimitDecisionsTotal.WithLabelValues(string(action), "rejected").Inc()
		slog.Info("Rate limit reached", "user", userID, "action", action, "scope", decision.Scope, "retry_after", decision.RetryAfter)
	}
	return decision, nil
}

// evaluate applies the rolling-window rules to info, mutating it in place
func evaluate(info *Info, limit Limit, action Action, now time.Time, loc *time.Location) Decision {
	recent := info.Timestamps[:0:0]
	for _, ts := range info.Timestamps {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	info.Timestamps = recent
	info.ExpiresAt = now.Add(recordTTL)

	if limit.Hourly > 0 && len(recent) >= limit.Hourly {
		oldest := slices.MinFunc(recent, func(a, b time.Time) int { return a.Compare(b) })
		minutes := wholeMinutes(oldest.Add(window).Sub(now), 60)
		return Decision{
			Allowed:    false,
			RetryAfter: time.Duration(minutes) * time.Minute,
			Scope:      "hourly",
			Message:    fmt.Sprintf("Hourly %s limit of %d reached. Try again in %d minute(s).", action, limit.Hourly, minutes),
		}
	}

	local := now.In(loc)
	today := local.Format(dateFmt)
	if info.LastResetDate != today {
		info.DailyCount = 0
		info.LastResetDate = today
	}

	if limit.Daily > 0 && info.DailyCount >= limit.Daily {
		midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
		minutes := wholeMinutes(midnight.Sub(now), 24*60)
		return Decision{
			Allowed:    false,
			RetryAfter: time.Duration(minutes) * time.Minute,
			Scope:      "daily",
			Message:    fmt.Sprintf("Daily %s limit of %d reached. Try again tomorrow.", action, limit.Daily),
		}
	}

	info.Timestamps = append(info.Timestamps, now)
	info.DailyCount++

	remaining := -1
	if limit.Hourly > 0 {
		remaining = limit.Hourly - len(info.Timestamps)
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// wholeMinutes rounds d up to whole minutes within [1, ceiling]
func wholeMinutes(d time.Duration, ceiling int) int {
	m := int(math.Ceil(d.Minutes()))
	return min(max(m, 1), ceiling)
}
