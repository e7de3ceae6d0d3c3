// Package testutil provides fluent-configuration mocks for the engine's
// collaborator interfaces, in the same WithX(...) style used elsewhere in
// this codebase's own transport mock.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cosmosdb-go/bulkexecutor/transport"
)

// MockTransport implements transport.Transport for engine tests. Configure
// its behavior with the WithX methods, then inspect DispatchHistory/
// DispatchCallCount after exercising it.
type MockTransport struct {
	mu sync.RWMutex

	dispatchErr  error
	responseFunc func(req *transport.BatchRequest) *transport.BatchResponse
	healthy      bool
	dispatchDelay time.Duration
	closed       bool

	dispatchCalls atomic.Int32
	closeCalls    atomic.Int32
	history       []*transport.BatchRequest
}

// NewMockTransport creates a MockTransport that returns a 201-for-every-op
// success response by default.
func NewMockTransport() *MockTransport {
	return &MockTransport{healthy: true}
}

// WithDispatchError configures Dispatch to fail with err.
func (m *MockTransport) WithDispatchError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchErr = err
	return m
}

// WithResponse configures Dispatch to return resp unconditionally.
func (m *MockTransport) WithResponse(resp *transport.BatchResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = func(*transport.BatchRequest) *transport.BatchResponse { return resp }
	return m
}

// WithResponseFunc configures Dispatch to compute its response from the
// request, for tests that need to vary the response per call (e.g.
// returning 429 on specific operation indices).
func (m *MockTransport) WithResponseFunc(fn func(req *transport.BatchRequest) *transport.BatchResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = fn
	return m
}

// WithHealthy configures the health status.
func (m *MockTransport) WithHealthy(healthy bool) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// WithDispatchDelay adds a delay before Dispatch returns.
func (m *MockTransport) WithDispatchDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchDelay = delay
	return m
}

// Dispatch implements transport.Transport.
func (m *MockTransport) Dispatch(ctx context.Context, req *transport.BatchRequest) (*transport.BatchResponse, error) {
	m.dispatchCalls.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock transport is closed")
	}
	delay := m.dispatchDelay
	dispatchErr := m.dispatchErr
	responseFunc := m.responseFunc
	m.history = append(m.history, req)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if dispatchErr != nil {
		return nil, dispatchErr
	}

	if responseFunc != nil {
		return responseFunc(req), nil
	}
	return defaultSuccessResponse(req), nil
}

// Close implements transport.Transport.
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// DispatchCallCount returns how many times Dispatch was called.
func (m *MockTransport) DispatchCallCount() int { return int(m.dispatchCalls.Load()) }

// CloseCallCount returns how many times Close was called.
func (m *MockTransport) CloseCallCount() int { return int(m.closeCalls.Load()) }

// DispatchHistory returns every request Dispatch has been called with.
func (m *MockTransport) DispatchHistory() []*transport.BatchRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*transport.BatchRequest, len(m.history))
	copy(out, m.history)
	return out
}

// Reset clears all configuration, history, and call counts.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchErr = nil
	m.responseFunc = nil
	m.healthy = true
	m.dispatchDelay = 0
	m.closed = false
	m.history = nil
	m.dispatchCalls.Store(0)
	m.closeCalls.Store(0)
}

// defaultSuccessResponse synthesizes a 201 result for every op in the
// request's body when no response has been configured. Requests go in as
// a JSON array; the count of top-level elements becomes the result count,
// which is all MockTransport needs to know without depending on bulk's
// wire shape.
func defaultSuccessResponse(req *transport.BatchRequest) *transport.BatchResponse {
	count := countTopLevelElements(req.Body)
	results := make([]transport.OperationResult, count)
	for i := range results {
		results[i] = transport.OperationResult{StatusCode: 201}
	}
	return &transport.BatchResponse{StatusCode: 200, RequestCharge: float64(count), Results: results}
}

// countTopLevelElements counts the comma-separated top-level JSON values
// in a `[...]` array body without a full JSON parse, sufficient for a
// test double synthesizing one result per submitted operation.
func countTopLevelElements(body []byte) int {
	depth := 0
	count := 0
	sawAny := false
	for _, b := range body {
		switch b {
		case '[', '{':
			if depth == 0 && b == '{' {
				sawAny = true
			}
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 1 {
				count++
			}
		}
	}
	if sawAny || len(body) > 2 {
		count++
	}
	return count
}
