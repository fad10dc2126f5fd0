package fetch

import (
	"context"
	"sync"
	"time"
)

// defaultMaxHosts is how many hosts are tracked before stale slots are swept
const defaultMaxHosts = 1024

// hostLimiter enforces a minimum delay between requests to the same host
type hostLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxHosts int
	next     map[string]time.Time
}

func newHostLimiter(minDelay time.Duration) *hostLimiter {
	return &hostLimiter{
		minDelay: minDelay,
		maxHosts: defaultMaxHosts,
		next:     make(map[string]time.Time),
	}
}

// Wait reserves the next slot for host and blocks until it arrives
func (hl *hostLimiter) Wait(ctx context.Context, host string) error {
	if hl.minDelay <= 0 {
		return nil
	}

	hl.mu.Lock()
	now := time.Now()
	slot := now
	if next, ok := hl.next[host]; ok && next.After(now) {
		slot = next
	}
	hl.next[host] = slot.Add(hl.minDelay)
	if len(hl.next) > hl.maxHosts {
		hl.sweep(now)
	}
	hl.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sweep drops hosts whose reserved slot has passed. Callers hold mu.
func (hl *hostLimiter) sweep(now time.Time) {
	for host, next := range hl.next {
		if !next.After(now) {
			delete(hl.next, host)
		}
	}
}
