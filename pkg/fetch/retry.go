package fetch

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy defines the configuration for retry behavior
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter spreads each backoff by up to this fraction in either direction
	Jitter float64
}

// CalculateBackoff calculates the backoff duration for a given attempt, without jitter
func (rp RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := rp.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	backoff := float64(rp.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if rp.MaxBackoff > 0 && backoff > float64(rp.MaxBackoff) {
		backoff = float64(rp.MaxBackoff)
	}

	return time.Duration(backoff)
}

// Backoff returns the jittered wait before the given retry attempt
func (rp RetryPolicy) Backoff(attempt int) time.Duration {
	base := rp.CalculateBackoff(attempt)
	if base <= 0 || rp.Jitter <= 0 {
		return base
	}
	spread := (rand.Float64()*2 - 1) * rp.Jitter
	return time.Duration(float64(base) * (1 + spread))
}

// Profile bundles a per-attempt timeout with a retry policy
type Profile struct {
	Name    string
	Timeout time.Duration
	Retry   RetryPolicy
}

// MainProfile is used for the primary page fetch
func MainProfile() Profile {
	return Profile{
		Name:    "main",
		Timeout: 15 * time.Second,
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        8 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.25,
		},
	}
}

// LightProfile is used for best-effort re-fetches such as image resolution
func LightProfile() Profile {
	return Profile{
		Name:    "light",
		Timeout: 8 * time.Second,
		Retry: RetryPolicy{
			MaxAttempts:       2,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.25,
		},
	}
}
