package bulk

import (
	"testing"
	"time"
)

func TestTimerHandleCancelPreventsFire(t *testing.T) {
	pool := NewTimerPool()
	defer pool.Dispose()

	h := pool.Schedule(nowPlusSeconds(1))
	h.Cancel()

	select {
	case <-h.C():
	case <-time.After(time.Second):
		t.Fatal("cancelled handle's channel never closed")
	}
	if !h.Cancelled() {
		t.Error("Cancelled() = false after Cancel()")
	}
}

func TestTimerHandleCancelIsIdempotent(t *testing.T) {
	pool := NewTimerPool()
	defer pool.Dispose()

	h := pool.Schedule(nowPlusSeconds(1))
	h.Cancel()
	h.Cancel()
}

func TestTimerPoolFiresAfterDeadline(t *testing.T) {
	pool := NewTimerPool()
	defer pool.Dispose()

	h := pool.Schedule(nowPlusSeconds(1))

	select {
	case <-h.C():
	case <-time.After(3 * time.Second):
		t.Fatal("handle did not fire within 3 seconds of a 1 second deadline")
	}
	if h.Cancelled() {
		t.Error("Cancelled() = true for a handle that fired naturally")
	}
}

func TestTimerPoolScheduleFloorsSubSecondDeadlines(t *testing.T) {
	pool := NewTimerPool()
	defer pool.Dispose()

	h := pool.Schedule(time.Now())
	if h.deadline.Before(time.Now()) {
		t.Error("Schedule did not floor a past deadline to at least 1s out")
	}
}

func TestTimerPoolDisposeFiresPendingHandles(t *testing.T) {
	pool := NewTimerPool()
	h := pool.Schedule(nowPlusSeconds(30))

	pool.Dispose()

	select {
	case <-h.C():
	case <-time.After(time.Second):
		t.Fatal("Dispose did not fire a still-pending handle")
	}
}

func TestTimerPoolScheduleAfterDisposeFiresImmediately(t *testing.T) {
	pool := NewTimerPool()
	pool.Dispose()

	h := pool.Schedule(nowPlusSeconds(30))
	select {
	case <-h.C():
	case <-time.After(time.Second):
		t.Fatal("Schedule after Dispose should fire its handle immediately")
	}
}
