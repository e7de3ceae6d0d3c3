package bulk

import (
	"context"
	"sync/atomic"
)

// LimiterStats is a snapshot of a PermitLimiter's counters, in the same
// shape as the connection pool's atomic-counter stats snapshot elsewhere
// in this codebase.
type LimiterStats struct {
	Outstanding    int32
	TotalAcquired  int64
	TotalReleased  int64
}

// PermitLimiter is a counted-permit primitive gating dispatcher
// concurrency for one partition range. Implemented as a buffered channel
// counting semaphore, adapted from the connection pool's channel-as-
// resource-pool idiom: a full channel means "at capacity", a successful
// send means "permit released".
type PermitLimiter struct {
	permits chan struct{}
	max     int

	outstanding   atomic.Int32
	totalAcquired atomic.Int64
	totalReleased atomic.Int64
}

// newPermitLimiter creates a limiter with initial permits available
// immediately and room to grow up to max via ReleaseN.
func newPermitLimiter(initial, max int) *PermitLimiter {
	l := &PermitLimiter{permits: make(chan struct{}, max), max: max}
	for i := 0; i < initial; i++ {
		l.permits <- struct{}{}
	}
	return l
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (l *PermitLimiter) Acquire(ctx context.Context) error {
	select {
	case <-l.permits:
		l.outstanding.Add(1)
		l.totalAcquired.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireBlocking acquires n permits unconditionally (no ctx), used by the
// congestion controller's multiplicative-decrease step: new dispatches
// must not proceed until existing ones drain, so this intentionally has no
// cancellation escape hatch.
func (l *PermitLimiter) AcquireBlocking(n int) {
	for i := 0; i < n; i++ {
		<-l.permits
		l.outstanding.Add(1)
		l.totalAcquired.Add(1)
	}
}

// Release returns one permit.
func (l *PermitLimiter) Release() {
	l.outstanding.Add(-1)
	l.totalReleased.Add(1)
	l.permits <- struct{}{}
}

// ReleaseN returns n permits, used by the congestion controller's
// additive-increase step.
func (l *PermitLimiter) ReleaseN(n int) {
	for i := 0; i < n; i++ {
		l.outstanding.Add(-1)
		l.totalReleased.Add(1)
		l.permits <- struct{}{}
	}
}

// Stats returns a snapshot of the limiter's counters.
func (l *PermitLimiter) Stats() LimiterStats {
	return LimiterStats{
		Outstanding:   l.outstanding.Load(),
		TotalAcquired: l.totalAcquired.Load(),
		TotalReleased: l.totalReleased.Load(),
	}
}
