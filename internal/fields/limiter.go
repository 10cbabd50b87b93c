package fields

import (
	"context"
	"sync"
	"time"
)

// MinIntervalGate serializes outbound model calls so that no two calls start
// within the configured interval, process-wide. Callers block until their
// slot arrives rather than being rejected.
type MinIntervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewMinIntervalGate creates a gate with the given minimum interval.
// A non-positive interval disables gating.
func NewMinIntervalGate(interval time.Duration) *MinIntervalGate {
	return &MinIntervalGate{interval: interval}
}

// Wait blocks until the caller may proceed or ctx is done. Slots are handed
// out in arrival order under the mutex, so concurrent callers cannot violate
// the minimum-interval contract.
func (g *MinIntervalGate) Wait(ctx context.Context) error {
	if g == nil || g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	now := time.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
