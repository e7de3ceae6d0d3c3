package bulk

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cosmosdb-go/bulkexecutor/routing"
	"github.com/cosmosdb-go/bulkexecutor/serializer"
)

// OperationKind is the kind of document operation a caller is submitting.
type OperationKind int

const (
	OpCreate OperationKind = iota
	OpRead
	OpReplace
	OpUpsert
	OpDelete
	OpPatch
)

func (k OperationKind) serializerKind() serializer.OperationKind {
	switch k {
	case OpCreate:
		return serializer.KindCreate
	case OpRead:
		return serializer.KindRead
	case OpReplace:
		return serializer.KindReplace
	case OpUpsert:
		return serializer.KindUpsert
	case OpDelete:
		return serializer.KindDelete
	case OpPatch:
		return serializer.KindPatch
	default:
		return serializer.KindCreate
	}
}

// OperationOptions carries per-operation overrides a caller may attach.
// Bulk does not support consistency level overrides, pre/post triggers, or
// session tokens; Add rejects an operation that sets any of these.
type OperationOptions struct {
	ConsistencyLevelOverride string
	PreTriggers              []string
	PostTriggers             []string
	SessionToken             string
}

// unsupported reports whether opts sets anything Add must reject.
func (o OperationOptions) unsupported() bool {
	return o.ConsistencyLevelOverride != "" || len(o.PreTriggers) > 0 || len(o.PostTriggers) > 0 || o.SessionToken != ""
}

// Result is an operation's outcome: either success (StatusCode in the 2xx
// range with the body/etag/charge the server returned) or a terminal
// error from the bulk/errors.go family.
type Result struct {
	StatusCode    int
	ETag          string
	ResourceBody  []byte
	RequestCharge float64
	Err           error
}

// Operation is a single caller-submitted document operation. It is
// created by the caller, lives until its result sink resolves exactly
// once, and is never shared across callers. Safe to place into multiple
// batches sequentially (on retry) but never concurrently; the single-
// owner invariant the streamer and dispatcher rely on.
type Operation struct {
	ID           string
	Kind         OperationKind
	PartitionKey routing.PartitionKeyValue
	Payload      interface{}
	Options      OperationOptions

	materializeOnce sync.Once
	body            []byte
	materializeErr  error

	ctx *OperationContext
}

// NewOperation creates an Operation with a generated trace id.
func NewOperation(kind OperationKind, pk routing.PartitionKeyValue, payload interface{}, opts OperationOptions) *Operation {
	return &Operation{
		ID:           uuid.New().String(),
		Kind:         kind,
		PartitionKey: pk,
		Payload:      payload,
		Options:      opts,
		ctx:          newOperationContext(),
	}
}

// Materialize serializes the operation's payload exactly once, caching
// the bytes. Subsequent calls are a no-op regardless of how many times the
// operation is rebatched: once the length is final, it stays final.
func (op *Operation) Materialize() ([]byte, error) {
	op.materializeOnce.Do(func() {
		op.body, op.materializeErr = serializer.Serialize(op.Kind.serializerKind(), op.ID, op.Payload)
	})
	return op.body, op.materializeErr
}

// Context returns the operation's OperationContext.
func (op *Operation) Context() *OperationContext { return op.ctx }

// OperationContext holds per-operation routing and retry state plus the
// single-shot result sink. Exactly one of {completion, terminal-error}
// occurs on resultCh, and it occurs at most once.
type OperationContext struct {
	mu               sync.Mutex
	currentRangeID   string
	retryState       *retryPolicyState
	resultCh         chan Result
	resolveOnce      sync.Once
	doubleResolveErr func(err error) // set by tests to observe a protocol violation
}

func newOperationContext() *OperationContext {
	return &OperationContext{
		resultCh:   make(chan Result, 1),
		retryState: newRetryPolicyState(),
	}
}

// RangeID returns the range this operation is currently targeted at.
func (c *OperationContext) RangeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRangeID
}

// SetRangeID updates the operation's current target range, used when
// Executor.rebatch re-resolves routing.
func (c *OperationContext) SetRangeID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentRangeID = id
}

// Wait blocks until the operation's result is resolved.
func (c *OperationContext) Wait() Result {
	return <-c.resultCh
}

// resolve delivers r on the result channel exactly once. A second call is
// a programming error: it is surfaced as a logged ProtocolViolation rather
// than silently dropped, so tests can catch double-resolution.
func (c *OperationContext) resolve(r Result, logger Logger) {
	resolved := false
	c.resolveOnce.Do(func() {
		c.resultCh <- r
		resolved = true
	})
	if !resolved {
		violation := newProtocolViolationError("operation result sink resolved more than once", map[string]interface{}{
			"statusCode": r.StatusCode,
		})
		if logger != nil {
			logger.Error("double resolution of operation result sink", Error("error", violation))
		}
		if c.doubleResolveErr != nil {
			c.doubleResolveErr(violation)
		}
	}
}
