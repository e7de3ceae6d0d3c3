package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/cosmosdb-go/bulkexecutor/protocol"
	"github.com/cosmosdb-go/bulkexecutor/serializer"
	"github.com/cosmosdb-go/bulkexecutor/transport"
)

// rebatchFunc resubmits op through routing resolution into its (possibly
// new) streamer. Supplied by the Executor so the dispatcher never needs to
// know about the range map itself.
type rebatchFunc func(ctx context.Context, op *Operation, forceRoutingRefresh bool)

// Dispatcher turns one sealed batch into a server request, awaits the
// response, parses per-operation results, and routes each result either to
// the operation's awaiter or back to the retry pipeline.
type Dispatcher struct {
	transport transport.Transport
	retryOpts RetryOptions
	hooks     *hookChain
	logger    Logger
	rebatch   rebatchFunc
}

func newDispatcher(t transport.Transport, retryOpts RetryOptions, hooks *hookChain, logger Logger, rebatch rebatchFunc) *Dispatcher {
	return &Dispatcher{transport: t, retryOpts: retryOpts, hooks: hooks, logger: logger, rebatch: rebatch}
}

// Dispatch runs the full per-batch protocol: acquire a permit, send the
// batch, parse the response, distribute per-op results, update the
// range's counters, and release the permit in a guaranteed-release step
// regardless of outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *Batch, limiter *PermitLimiter, counters *rangeCounters) {
	if err := limiter.Acquire(ctx); err != nil {
		d.resolveAll(batch, Result{Err: newCancelledError("permit acquire cancelled")})
		return
	}
	defer limiter.Release()

	body, err := serializer.ComposeBatchBody(batch.Bodies)
	if err != nil {
		d.resolveAll(batch, Result{Err: newProtocolViolationError("failed to compose batch body", nil)})
		return
	}

	hc := &HookContext{
		RangeID:   batch.RangeID,
		OpCount:   len(batch.Ops),
		BodyBytes: len(body),
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	if err := d.hooks.runBefore(ctx, hc); err != nil {
		d.resolveAll(batch, Result{Err: newTransportFailureError("dispatch aborted by hook", err)})
		return
	}

	req := &transport.BatchRequest{PartitionRangeID: batch.RangeID, Body: body}
	start := time.Now()
	resp, err := d.transport.Dispatch(ctx, req)
	elapsed := time.Since(start)
	hc.Duration = elapsed

	if err != nil {
		hc.Err = err
		d.hooks.runAfter(ctx, hc)
		d.resolveAll(batch, Result{Err: newTransportFailureError("transport dispatch failed", err)})
		return
	}

	if len(resp.Results) != len(batch.Ops) {
		hc.Err = fmt.Errorf("result count mismatch: expected %d, got %d", len(batch.Ops), len(resp.Results))
		d.hooks.runAfter(ctx, hc)
		d.resolveAll(batch, Result{Err: newProtocolViolationError(hc.Err.Error(), map[string]interface{}{
			"expected": len(batch.Ops),
			"actual":   len(resp.Results),
		})})
		return
	}

	hc.StatusCode = resp.StatusCode
	hc.RequestCharge = resp.RequestCharge
	d.hooks.runAfter(ctx, hc)

	var throttleCount int64
	for i, op := range batch.Ops {
		r := resp.Results[i]
		if r.StatusCode == protocol.StatusTooManyRq {
			throttleCount++
		}
		d.settleOne(ctx, op, r, resp.RequestCharge)
	}

	counters.docsServed.Add(int64(len(batch.Ops)))
	counters.throttled.Add(throttleCount)
	counters.cumulativeBackendMs.Add(elapsed.Milliseconds())
}

// settleOne consults op's retry state against r and either resolves op's
// result sink or hands it back to the Executor for rebatch.
func (d *Dispatcher) settleOne(ctx context.Context, op *Operation, r transport.OperationResult, requestCharge float64) {
	details := map[string]interface{}{
		"statusCode": r.StatusCode,
		"subStatus":  r.SubStatus,
	}
	decision, wait, terminalErr := evaluate(d.retryOpts, op.Context().retryState, r.StatusCode, r.SubStatus, r.RetryAfter, details)

	switch decision {
	case decisionResolve:
		if terminalErr != nil {
			op.Context().resolve(Result{StatusCode: r.StatusCode, Err: terminalErr}, d.logger)
			return
		}
		op.Context().resolve(Result{
			StatusCode:    r.StatusCode,
			ETag:          r.ETag,
			ResourceBody:  r.ResourceBody,
			RequestCharge: requestCharge,
		}, d.logger)

	case decisionRebatch:
		d.rebatch(ctx, op, true)

	case decisionWaitThenRebatch:
		go func() {
			if wait > 0 {
				timer := time.NewTimer(wait)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					op.Context().resolve(Result{Err: newCancelledError("executor shutdown during throttle wait")}, d.logger)
					return
				case <-timer.C:
				}
			}
			d.rebatch(ctx, op, false)
		}()
	}
}

// resolveAll resolves every operation in batch with the same result,
// used for whole-batch failures where no per-op distinction is possible.
func (d *Dispatcher) resolveAll(batch *Batch, r Result) {
	for _, op := range batch.Ops {
		op.Context().resolve(r, d.logger)
	}
}
