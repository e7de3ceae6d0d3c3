package bulk

import (
	"time"

	"github.com/cosmosdb-go/bulkexecutor/protocol"
)

// retryDecision is what the retry policy wants done with one per-op
// response.
type retryDecision int

const (
	// decisionResolve means settle the operation's result sink now.
	decisionResolve retryDecision = iota
	// decisionRebatch means re-resolve routing (if stale) and resubmit.
	decisionRebatch
	// decisionWaitThenRebatch means sleep the retry-after duration, then
	// resubmit without forcing a routing refresh.
	decisionWaitThenRebatch
)

// retryPolicyState carries one operation's retry bookkeeping across
// rebatches. Never shared with any other operation; created once per
// Operation and mutated only by whoever is currently evaluating that
// operation's response.
type retryPolicyState struct {
	partitionGoneAttempts int
	throttleAttempts      int
	cumulativeWaitSeconds float64
}

func newRetryPolicyState() *retryPolicyState {
	return &retryPolicyState{}
}

// evaluate runs the two composed retry layers, outer (partition-gone)
// before inner (throttle), against one per-operation response. It returns
// the decision plus, for decisionWaitThenRebatch, how long to wait before
// resubmitting, and for a terminal outcome, the error to resolve with (nil
// means the caller should resolve with the response's own success/
// business-error result instead).
func evaluate(opts RetryOptions, state *retryPolicyState, statusCode, subStatus int, retryAfter time.Duration, details map[string]interface{}) (retryDecision, time.Duration, error) {
	disposition := protocol.Classify(statusCode, subStatus)

	switch disposition {
	case protocol.BusinessError:
		return decisionResolve, 0, newBusinessError(statusCode, details)

	case protocol.PartitionGone:
		if state.partitionGoneAttempts >= opts.MaxPartitionGoneRetryAttempts {
			return decisionResolve, 0, newRoutingStaleError(
				"partition routing remained stale after exhausting retry budget",
				map[string]interface{}{
					"attempts":  state.partitionGoneAttempts,
					"statusCode": statusCode,
					"subStatus": subStatus,
				},
				nil,
			)
		}
		state.partitionGoneAttempts++
		return decisionRebatch, 0, nil

	case protocol.Throttled:
		if state.throttleAttempts >= opts.MaxRetryAttemptsOnThrottledRequests {
			return decisionResolve, 0, newThrottledError(
				"throttled after exhausting retry attempt budget",
				map[string]interface{}{"attempts": state.throttleAttempts},
			)
		}
		projectedWait := state.cumulativeWaitSeconds + retryAfter.Seconds()
		if projectedWait > float64(opts.MaxRetryWaitTimeInSeconds) {
			return decisionResolve, 0, newThrottledError(
				"throttled after exhausting cumulative retry wait time",
				map[string]interface{}{"cumulativeWaitSeconds": state.cumulativeWaitSeconds},
			)
		}
		state.throttleAttempts++
		state.cumulativeWaitSeconds = projectedWait
		return decisionWaitThenRebatch, retryAfter, nil

	default:
		return decisionResolve, 0, nil
	}
}
