package bulk

import (
	"context"
	"sync"
	"time"
)

// HookContext carries information about one dispatched batch, passed to
// both the Before and After call of every registered hook.
type HookContext struct {
	RangeID   string
	OpCount   int
	BodyBytes int
	StartTime time.Time
	Metadata  map[string]interface{}

	// Set by the dispatcher after the transport call, available in After.
	StatusCode    int
	RequestCharge float64
	Err           error
	Duration      time.Duration
}

// Hook is the engine's sole extensibility seam for instrumentation. It is
// deliberately generic rather than wired to any specific metrics backend.
type Hook interface {
	Name() string
	Before(ctx context.Context, hc *HookContext) error
	After(ctx context.Context, hc *HookContext) error
}

type hookEntry struct {
	hook  Hook
	order int
}

// hookChain is a FIFO Before/After chain, adapted from the client's
// registration/execution discipline: hooks run in registration order, a
// hook registered under a name already in use replaces the existing one
// in place, and every After hook runs even if an earlier one errors.
type hookChain struct {
	mu     sync.RWMutex
	hooks  []hookEntry
	logger Logger
}

func newHookChain(logger Logger) *hookChain {
	return &hookChain{logger: logger}
}

// Register adds hook to the chain, replacing any existing hook with the
// same name while preserving its position.
func (c *hookChain) Register(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.hooks {
		if e.hook.Name() == hook.Name() {
			c.hooks[i].hook = hook
			return
		}
	}
	c.hooks = append(c.hooks, hookEntry{hook: hook, order: len(c.hooks)})
}

// Unregister removes a hook by name, reporting whether one was found.
func (c *hookChain) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.hooks {
		if e.hook.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			return true
		}
	}
	return false
}

func (c *hookChain) snapshot() []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Hook, len(c.hooks))
	for i, e := range c.hooks {
		out[i] = e.hook
	}
	return out
}

// runBefore executes every Before hook in order, stopping at the first
// error.
func (c *hookChain) runBefore(ctx context.Context, hc *HookContext) error {
	for _, h := range c.snapshot() {
		if err := h.Before(ctx, hc); err != nil {
			if c.logger != nil {
				c.logger.Debug("hook aborted dispatch", String("hook", h.Name()), Error("error", err))
			}
			return err
		}
	}
	return nil
}

// runAfter executes every After hook even if one errors; returns the last
// error observed, if any.
func (c *hookChain) runAfter(ctx context.Context, hc *HookContext) error {
	var lastErr error
	for _, h := range c.snapshot() {
		if err := h.After(ctx, hc); err != nil {
			if c.logger != nil {
				c.logger.Debug("hook returned error in After", String("hook", h.Name()), Error("error", err))
			}
			lastErr = err
		}
	}
	return lastErr
}
