// Package bulk is the core bulk execution engine: operations are grouped
// into per-partition batches, dispatched with bounded concurrency shaped
// by AIMD congestion control, and retried on partition-routing or
// throttling errors.
package bulk

import (
	"context"
	"fmt"
	"sync"

	"github.com/cosmosdb-go/bulkexecutor/routing"
	"github.com/cosmosdb-go/bulkexecutor/transport"
)

// rangeResources is everything Executor creates lazily the first time an
// operation resolves to a given partition range: its streamer, permit
// limiter, congestion controller, and counters. Destroyed only at
// Executor shutdown.
type rangeResources struct {
	streamer   *Streamer
	limiter    *PermitLimiter
	controller *CongestionController
	counters   *rangeCounters
}

// Executor is the top-level facade. It resolves the target partition for
// each operation, lazily creates the streamer+limiter+controller per
// range, and owns shutdown.
type Executor struct {
	opts      ExecutorOptions
	transport transport.Transport
	resolver  routing.Resolver
	logger    Logger
	hooks     *hookChain
	state     *StateManager
	timerPool *TimerPool

	rootCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	ranges map[string]*rangeResources
}

// NewExecutor creates an Executor. A nil opts yields DefaultExecutorOptions.
func NewExecutor(opts *ExecutorOptions, t transport.Transport, resolver routing.Resolver) *Executor {
	var o ExecutorOptions
	if opts != nil {
		o = *opts
	} else {
		o = DefaultExecutorOptions()
	}
	o = o.normalize()

	rootCtx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		opts:      o,
		transport: t,
		resolver:  resolver,
		logger:    o.Logger,
		hooks:     newHookChain(o.Logger),
		state:     NewStateManager(),
		timerPool: NewTimerPool(),
		rootCtx:   rootCtx,
		cancel:    cancel,
		ranges:    make(map[string]*rangeResources),
	}
	return e
}

// RegisterHook adds an instrumentation hook to the dispatch chain.
func (e *Executor) RegisterHook(h Hook) { e.hooks.Register(h) }

// UnregisterHook removes a previously registered hook by name.
func (e *Executor) UnregisterHook(name string) bool { return e.hooks.Unregister(name) }

// OnStateChange registers a lifecycle transition handler.
func (e *Executor) OnStateChange(h StateChangeHandler) { e.state.OnStateChange(h) }

// State returns the Executor's current lifecycle state.
func (e *Executor) State() ExecutorState { return e.state.GetState() }

// Add resolves op's target partition, admits it into that range's
// streamer, and returns its OperationContext, which resolves exactly once
// with a Result. Every failure is surfaced through that Result rather than
// as a synchronous error, except for the upfront usage/resolution checks
// below, which fail fast because they indicate a caller bug rather than a
// transient condition.
func (e *Executor) Add(ctx context.Context, op *Operation) (*OperationContext, error) {
	if op.Options.unsupported() {
		return nil, newInvalidUsageError("UNSUPPORTED_OPTIONS",
			"bulk does not support consistency level overrides, pre/post triggers, or session tokens", nil)
	}
	if _, err := op.Materialize(); err != nil {
		return nil, newInvalidUsageError("MATERIALIZE_FAILED", err.Error(), nil)
	}
	if s := e.state.GetState(); s == Draining || s == Closed {
		op.Context().resolve(Result{Err: newCancelledError("executor is disposed")}, e.logger)
		return op.Context(), nil
	}

	rangeID, err := e.resolveRange(ctx, op.PartitionKey, false)
	if err != nil {
		return nil, newRoutingStaleError("failed to resolve partition range", nil, err)
	}

	if e.state.GetState() == Idle {
		_ = e.state.TransitionTo(Running, nil)
	}

	res := e.getOrCreateRange(rangeID)
	op.Context().SetRangeID(rangeID)
	res.streamer.Add(e.rootCtx, op)

	return op.Context(), nil
}

// rebatch re-resolves op's partition (forcing a routing-map refresh when
// forceRoutingRefresh is set, i.e. on a partition-gone response) and
// resubmits it to the resulting streamer, reusing its existing retry
// state. It is the callback a Dispatcher invokes; it is never called
// directly by a caller.
func (e *Executor) rebatch(ctx context.Context, op *Operation, forceRoutingRefresh bool) {
	if forceRoutingRefresh {
		e.resolver.Refresh(ctx)
	}

	rangeID, err := e.resolveRange(ctx, op.PartitionKey, forceRoutingRefresh)
	if err != nil {
		op.Context().resolve(Result{Err: newRoutingStaleError("failed to re-resolve partition range on rebatch", nil, err)}, e.logger)
		return
	}

	res := e.getOrCreateRange(rangeID)
	op.Context().SetRangeID(rangeID)
	res.streamer.Add(e.rootCtx, op)
}

// resolveRange translates pk into a range id via the pure RangeID
// function, fetching the partition key definition and routing map from
// the resolver collaborator.
func (e *Executor) resolveRange(ctx context.Context, pk routing.PartitionKeyValue, _ bool) (string, error) {
	def, err := e.resolver.PartitionKeyDefinition(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching partition key definition: %w", err)
	}
	rm, err := e.resolver.RoutingMap(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching routing map: %w", err)
	}
	if pk.None {
		none, err := e.resolver.NonePartitionKeyValue(ctx)
		if err != nil {
			return "", fmt.Errorf("fetching none partition key value: %w", err)
		}
		pk = none
	}
	return routing.RangeID(pk, def, rm)
}

// getOrCreateRange returns the existing rangeResources for rangeID,
// building a new one if none exists. If two callers race to create the
// same range, the loser's candidate is discarded before its controller is
// ever started, so there is nothing to dispose.
func (e *Executor) getOrCreateRange(rangeID string) *rangeResources {
	e.mu.Lock()
	if r, ok := e.ranges[rangeID]; ok {
		e.mu.Unlock()
		return r
	}
	e.mu.Unlock()

	counters := &rangeCounters{}
	limiter := newPermitLimiter(e.opts.PermitLimiterInitial, e.opts.PermitLimiterMax)
	controller := newCongestionController(rangeID, limiter, counters, e.opts.PermitLimiterInitial, e.opts.PermitLimiterMax, e.opts.CongestionAdditiveFactorInitial, e.logger)
	dispatcher := newDispatcher(e.transport, e.opts.RetryOptions, e.hooks, e.logger, e.rebatch)
	streamer := newStreamer(rangeID, e.opts.MaxServerRequestOperationCount, e.opts.MaxServerRequestBodyLength, e.opts.DispatchTimerSeconds, e.timerPool,
		func(ctx context.Context, batch *Batch) { dispatcher.Dispatch(ctx, batch, limiter, counters) }, e.logger)

	candidate := &rangeResources{streamer: streamer, limiter: limiter, controller: controller, counters: counters}

	e.mu.Lock()
	if existing, ok := e.ranges[rangeID]; ok {
		e.mu.Unlock()
		return existing
	}
	e.ranges[rangeID] = candidate
	e.mu.Unlock()

	controller.Start()
	if e.opts.OnRangeCreated != nil {
		e.opts.OnRangeCreated(rangeID)
	}
	return candidate
}

// Dispose drains every streamer with a final forced flush, stops every
// congestion controller, disposes the shared timer pool, and cancels the
// root context so any dispatch still in flight resolves its remaining
// operations with Cancelled rather than leaking them.
func (e *Executor) Dispose(ctx context.Context) error {
	if e.state.GetState() == Closed {
		return nil
	}
	if err := e.state.TransitionTo(Draining, nil); err != nil {
		return err
	}

	e.mu.Lock()
	ranges := make([]*rangeResources, 0, len(e.ranges))
	for _, r := range e.ranges {
		ranges = append(ranges, r)
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range ranges {
		wg.Add(1)
		go func(r *rangeResources) {
			defer wg.Done()
			r.streamer.Drain(ctx)
			r.controller.Stop()
		}(r)
	}
	wg.Wait()

	e.cancel()
	e.timerPool.Dispose()

	if err := e.state.TransitionTo(Closed, nil); err != nil {
		return err
	}
	if e.opts.OnShutdown != nil {
		e.opts.OnShutdown()
	}
	return nil
}
