package bulk

import (
	"context"
	"testing"
	"time"
)

func TestCongestionControllerDecreaseAcquiresPermitsAndResetsAif(t *testing.T) {
	limiter := newPermitLimiter(10, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 10, 60, 5, NewNoopLogger())

	c.decrease(5000)

	if c.aif != 1 {
		t.Errorf("aif after decrease = %d, want 1", c.aif)
	}
	if c.dop >= 10 {
		t.Errorf("dop after decrease = %d, want < 10", c.dop)
	}
	stats := limiter.Stats()
	if int(stats.Outstanding) != 10-c.dop {
		t.Errorf("limiter outstanding = %d, want %d permits held by the controller after decrease", stats.Outstanding, 10-c.dop)
	}
}

func TestCongestionControllerDecreaseNeverExceedsDop(t *testing.T) {
	limiter := newPermitLimiter(1, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 1, 60, 5, NewNoopLogger())

	c.decrease(1)

	if c.dop < 0 {
		t.Fatalf("dop went negative: %d", c.dop)
	}
}

func TestCongestionControllerIncreaseReleasesAif(t *testing.T) {
	limiter := newPermitLimiter(5, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 5, 60, 5, NewNoopLogger())

	c.increase()

	if c.dop != 10 {
		t.Errorf("dop after increase = %d, want 10", c.dop)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	for i := 0; i < 10; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d after increase: %v", i, err)
		}
	}
}

func TestCongestionControllerIncreaseRespectsMaxDop(t *testing.T) {
	limiter := newPermitLimiter(58, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 58, 60, 5, NewNoopLogger())

	c.increase()

	if c.dop != 58 {
		t.Errorf("dop after blocked increase = %d, want unchanged 58", c.dop)
	}
}

func TestCongestionControllerStartStopIsClean(t *testing.T) {
	limiter := newPermitLimiter(5, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 5, 60, 5, NewNoopLogger())

	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

func TestCongestionControllerStopIsIdempotent(t *testing.T) {
	limiter := newPermitLimiter(5, 60)
	c := newCongestionController("range-0", limiter, &rangeCounters{}, 5, 60, 5, NewNoopLogger())
	c.Start()
	c.Stop()
	c.Stop()
}
