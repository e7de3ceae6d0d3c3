package bulk

import (
	"context"
	"sync"
)

// dispatchFunc hands a sealed batch off to the dispatcher. It never
// blocks the streamer's own critical section; the streamer always invokes
// it outside the seal+swap lock.
type dispatchFunc func(ctx context.Context, batch *Batch)

// Streamer owns one BatchBuffer at a time for a single partition range
// plus the scheduling that seals it, either because it filled or because
// its dispatch deadline fired. Add is safe for concurrent callers; a
// single mutex makes fill-based and timer-based seals mutually exclusive,
// so two dispatchers can never operate on overlapping operation lists;
// the same single-lock-guards-shared-state discipline used for the
// connection pool's shared channel elsewhere in this codebase, with the
// expensive work (dispatch) always done outside the critical section.
type Streamer struct {
	rangeID      string
	maxOps       int
	maxBodyBytes int
	dispatchSecs int
	timerPool    *TimerPool
	dispatch     dispatchFunc
	logger       Logger

	mu     sync.Mutex
	buffer *BatchBuffer
	timer  *TimerHandle
	closed bool

	wg sync.WaitGroup
}

// newStreamer creates a Streamer for rangeID. dispatch is invoked once
// per sealed batch, outside the streamer's lock.
func newStreamer(rangeID string, maxOps, maxBodyBytes, dispatchSecs int, timerPool *TimerPool, dispatch dispatchFunc, logger Logger) *Streamer {
	return &Streamer{
		rangeID:      rangeID,
		maxOps:       maxOps,
		maxBodyBytes: maxBodyBytes,
		dispatchSecs: dispatchSecs,
		timerPool:    timerPool,
		dispatch:     dispatch,
		logger:       logger,
	}
}

// Add admits op into the current buffer, sealing and dispatching the
// previous buffer first if it cannot accept op. Add never fails directly;
// materialize errors and every downstream failure manifest on the
// operation's own result future.
func (s *Streamer) Add(ctx context.Context, op *Operation) {
	body, err := op.Materialize()
	if err != nil {
		op.Context().resolve(Result{Err: newInvalidUsageError("MATERIALIZE_FAILED", err.Error(), nil)}, s.logger)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		op.Context().resolve(Result{Err: newCancelledError("streamer is disposed")}, s.logger)
		return
	}

	if s.buffer == nil {
		s.buffer = newBatchBuffer(s.rangeID, s.maxOps, s.maxBodyBytes)
	}

	var sealed *Batch
	if !s.buffer.canAdmit(len(body)) {
		sealed = s.sealLocked()
		s.buffer = newBatchBuffer(s.rangeID, s.maxOps, s.maxBodyBytes)
	}

	s.buffer.admit(op, body)
	op.Context().SetRangeID(s.rangeID)

	if len(s.buffer.ops) == 1 {
		s.scheduleTimerLocked()
	}
	s.mu.Unlock()

	if sealed != nil {
		s.dispatchAsync(ctx, sealed)
	}
}

// scheduleTimerLocked schedules the dispatch deadline for the buffer that
// was just admitted into. Must be called with s.mu held.
func (s *Streamer) scheduleTimerLocked() {
	deadline := nowPlusSeconds(s.dispatchSecs)
	handle := s.timerPool.Schedule(deadline)
	s.timer = handle

	s.wg.Add(1)
	go func(h *TimerHandle) {
		defer s.wg.Done()
		<-h.C()
		if h.Cancelled() {
			return
		}
		s.fireTimer(h)
	}(handle)
}

// fireTimer seals the current buffer if it is still the one the fired
// timer belongs to. A buffer that already rotated out (fill-based seal
// beat the timer) means there is nothing to do.
func (s *Streamer) fireTimer(h *TimerHandle) {
	s.mu.Lock()
	if s.timer != h || s.buffer == nil || s.buffer.empty() {
		s.mu.Unlock()
		return
	}
	sealed := s.sealLocked()
	s.mu.Unlock()

	if sealed != nil {
		s.dispatchAsync(context.Background(), sealed)
	}
}

// sealLocked seals the current buffer, cancels its pending timer, and
// drops the sealed buffer so the next Add starts a fresh one. Must be
// called with s.mu held. Returns nil if the buffer is empty.
func (s *Streamer) sealLocked() *Batch {
	if s.buffer == nil || s.buffer.empty() {
		return nil
	}
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	batch, err := s.buffer.seal()
	ops := s.buffer.ops
	s.buffer = nil
	if err != nil {
		// Bug, not a transient condition: resolve every op in the buffer
		// with a protocol violation rather than silently dropping them.
		violation := newProtocolViolationError(err.Error(), nil)
		for _, op := range ops {
			op.Context().resolve(Result{Err: violation}, s.logger)
		}
		return nil
	}
	return batch
}

func (s *Streamer) dispatchAsync(ctx context.Context, batch *Batch) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, batch)
	}()
}

// Drain forces a final seal of whatever is pending and dispatches it (or,
// if ctx is already done, resolves every pending op with Cancelled
// without touching the transport), then marks the streamer closed to any
// further Add calls, and waits for every in-flight dispatch goroutine this
// streamer started to finish. Called once by Executor shutdown.
func (s *Streamer) Drain(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	sealed := s.sealLocked()
	s.mu.Unlock()

	if sealed != nil {
		select {
		case <-ctx.Done():
			for _, op := range sealed.Ops {
				op.Context().resolve(Result{Err: newCancelledError("executor shutdown")}, s.logger)
			}
		default:
			s.dispatchAsync(ctx, sealed)
		}
	}

	s.wg.Wait()
}
