// Package transport defines the RPC collaborator the engine dispatches
// batches through, plus a default HTTP/JSON implementation.
package transport

import (
	"context"
	"time"
)

// OperationResult is one operation's outcome within a BatchResponse, in
// the same order as the operations in the request.
type OperationResult struct {
	StatusCode   int
	SubStatus    int
	RetryAfter   time.Duration
	ETag         string
	ResourceBody []byte
}

// BatchRequest is a sealed batch turned into a server request: the
// partition range it targets, the framed operation bodies in admission
// order, and any extra headers to set on the request.
type BatchRequest struct {
	PartitionRangeID string
	Body             []byte
	Headers          map[string]string
}

// BatchResponse is the parsed server response to a BatchRequest.
type BatchResponse struct {
	StatusCode    int
	RequestCharge float64
	Results       []OperationResult
}

// Transport is the RPC collaborator the dispatcher calls. Implementations
// must be safe for concurrent use; Dispatch must honor ctx cancellation.
type Transport interface {
	// Dispatch sends one sealed batch and returns its parsed response.
	// A non-nil error means the whole batch failed to reach or return
	// from the server (connection error, timeout, malformed response);
	// per-operation statuses inside a successfully-parsed BatchResponse
	// are not errors from Dispatch's point of view.
	Dispatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error)
	// Close releases any resources held by the transport (connections,
	// background goroutines). Safe to call once; further Dispatch calls
	// after Close must return an error.
	Close() error
}

// TransportMetrics mirrors the shape exposed by other transports in this
// codebase so callers instrumenting one can instrument the other the same
// way.
type TransportMetrics struct {
	TotalRequests  int64
	TotalErrors    int64
	AverageLatency time.Duration
	BytesSent      int64
	BytesReceived  int64
}

// Standard header names HTTPTransport sets on every request.
const (
	HeaderPartitionKeyRangeID = "x-ms-documentdb-partitionkeyrangeid"
	HeaderBatchContinueOnErr  = "x-ms-cosmos-batch-continue-on-error"
	HeaderIsBatchRequest      = "x-ms-cosmos-is-batch-request"
)
