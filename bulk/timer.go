package bulk

import (
	"sync"
	"time"
)

// TimerHandle is a future that fires at or after a requested deadline and
// can be cancelled before firing. Cancel is idempotent.
type TimerHandle struct {
	deadline time.Time
	fire     chan struct{}

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

// C returns the channel that closes when the handle fires or is
// cancelled. Callers distinguish the two with Cancelled().
func (h *TimerHandle) C() <-chan struct{} { return h.fire }

// Cancelled reports whether the handle was cancelled rather than fired.
func (h *TimerHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Cancel prevents the handle from firing if it hasn't already. Idempotent.
func (h *TimerHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fired || h.cancelled {
		return
	}
	h.cancelled = true
	close(h.fire)
}

func (h *TimerHandle) tryFire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fired || h.cancelled {
		return
	}
	h.fired = true
	close(h.fire)
}

// TimerPool is a shared, whole-second-resolution scheduler: one goroutine
// ticks every second and fires every handle whose deadline has passed,
// coalescing what would otherwise be thousands of per-buffer timers onto a
// single background worker; the same ticker-driven background-worker
// idiom used elsewhere in this codebase for periodic maintenance.
type TimerPool struct {
	mu      sync.Mutex
	buckets map[int64][]*TimerHandle // deadline, rounded up to whole seconds (unix) -> handles
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewTimerPool creates and starts a TimerPool.
func NewTimerPool() *TimerPool {
	p := &TimerPool{
		buckets: make(map[int64][]*TimerHandle),
		stopCh:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Schedule returns a handle that fires at or after deadline. Resolution is
// whole seconds; a deadline less than 1s from now is floored to 1s out.
func (p *TimerPool) Schedule(deadline time.Time) *TimerHandle {
	minDeadline := time.Now().Add(1 * time.Second)
	if deadline.Before(minDeadline) {
		deadline = minDeadline
	}

	h := &TimerHandle{deadline: deadline, fire: make(chan struct{})}
	// Round the bucket up to the next whole second so the handle never
	// fires before its deadline.
	bucket := deadline.Truncate(time.Second).Unix()
	if deadline.After(deadline.Truncate(time.Second)) {
		bucket++
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		h.tryFire()
		return h
	}
	p.buckets[bucket] = append(p.buckets[bucket], h)
	return h
}

func (p *TimerPool) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.fireDue(now)
		}
	}
}

func (p *TimerPool) fireDue(now time.Time) {
	nowBucket := now.Truncate(time.Second).Unix()

	p.mu.Lock()
	due := make([]*TimerHandle, 0)
	for bucket, handles := range p.buckets {
		if bucket <= nowBucket {
			due = append(due, handles...)
			delete(p.buckets, bucket)
		}
	}
	p.mu.Unlock()

	for _, h := range due {
		h.tryFire()
	}
}

// nowPlusSeconds returns the deadline secs seconds from now.
func nowPlusSeconds(secs int) time.Time {
	return time.Now().Add(time.Duration(secs) * time.Second)
}

// Dispose stops the pool's goroutine and fires every still-pending handle
// so no caller waits forever.
func (p *TimerPool) Dispose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := make([]*TimerHandle, 0)
	for _, handles := range p.buckets {
		pending = append(pending, handles...)
	}
	p.buckets = make(map[int64][]*TimerHandle)
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	for _, h := range pending {
		h.tryFire()
	}
}
