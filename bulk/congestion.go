package bulk

import (
	"sync"
	"sync/atomic"
	"time"
)

// rangeCounters are the per-range monotonically non-decreasing counters
// the dispatcher updates and the congestion controller observes. Reads are
// relaxed atomic loads: the controller's correctness tolerates a tick's
// delay.
type rangeCounters struct {
	docsServed          atomic.Int64
	throttled           atomic.Int64
	cumulativeBackendMs atomic.Int64
}

// CongestionController runs one AIMD tick loop per partition range until
// the Executor signals shutdown. It keys its epoch on cumulative backend
// time rather than wall-clock, so measurement skew does not perturb
// control, and adjusts the range's PermitLimiter in place.
//
// The tick loop follows the ticker-driven background-worker idiom used
// elsewhere in this codebase for periodic maintenance: a select over a
// stop channel and a short idle sleep, running under a WaitGroup so
// Dispose can block until every controller has actually exited.
type CongestionController struct {
	limiter  *PermitLimiter
	counters *rangeCounters
	maxDop   int
	logger   Logger
	rangeID  string

	lastBackendSecs float64
	waitSecs        float64
	oldDocs         int64
	oldThrottle     int64
	dop             int
	aif             int

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// newCongestionController creates a controller for one range. dop starts
// at initialPermits (the count the limiter was seeded with); aif starts at
// additiveFactorInitial.
func newCongestionController(rangeID string, limiter *PermitLimiter, counters *rangeCounters, initialPermits, maxDop, additiveFactorInitial int, logger Logger) *CongestionController {
	return &CongestionController{
		limiter:  limiter,
		counters: counters,
		maxDop:   maxDop,
		logger:   logger,
		rangeID:  rangeID,
		waitSecs: 1,
		dop:      initialPermits,
		aif:      additiveFactorInitial,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the tick loop in a background goroutine.
func (c *CongestionController) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop signals the tick loop to exit and waits for it to do so. No
// permit-accounting cleanup is required beyond this: the limiter itself is
// disposed wholesale by the Executor.
func (c *CongestionController) Stop() {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *CongestionController) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		currentBackendSecs := float64(c.counters.cumulativeBackendMs.Load()) / 1000.0
		if currentBackendSecs-c.lastBackendSecs < c.waitSecs {
			select {
			case <-c.stopCh:
				return
			case <-time.After(2 * time.Millisecond):
			}
			continue
		}

		c.lastBackendSecs = currentBackendSecs
		c.waitSecs += 1 // see DESIGN.md: unbounded growth is intentional, not capped

		docs := c.counters.docsServed.Load()
		throttle := c.counters.throttled.Load()
		deltaDocs := docs - c.oldDocs
		deltaThrottle := throttle - c.oldThrottle
		c.oldDocs = docs
		c.oldThrottle = throttle

		switch {
		case deltaThrottle > 0:
			c.decrease(deltaThrottle)
		case deltaDocs > 0 && deltaThrottle == 0:
			c.increase()
		}
	}
}

// decrease applies the multiplicative-decrease step: aif resets to 1
// permanently (see DESIGN.md decision log), a fraction of outstanding dop
// is removed by acquiring permits (blocking, so new dispatches wait for
// existing ones to drain rather than being preempted).
func (c *CongestionController) decrease(deltaThrottle int64) {
	c.aif = 1
	decreaseFactor := 1.0 + 1000.0/maxFloat(float64(deltaThrottle), 1000.0)
	decreaseCount := int(float64(c.dop) / decreaseFactor)
	if decreaseCount <= 0 {
		return
	}
	if decreaseCount > c.dop {
		decreaseCount = c.dop
	}
	c.limiter.AcquireBlocking(decreaseCount)
	c.dop -= decreaseCount
	if c.logger != nil {
		c.logger.Warn("congestion controller decreased permits",
			String("rangeId", c.rangeID), Int("decreaseCount", decreaseCount), Int("dop", c.dop))
	}
}

// increase applies the additive-increase step: release aif permits if
// doing so would not exceed maxDop.
func (c *CongestionController) increase() {
	if c.dop+c.aif > c.maxDop {
		return
	}
	c.limiter.ReleaseN(c.aif)
	c.dop += c.aif
	if c.logger != nil {
		c.logger.Debug("congestion controller increased permits",
			String("rangeId", c.rangeID), Int("aif", c.aif), Int("dop", c.dop))
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
