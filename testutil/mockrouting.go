package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cosmosdb-go/bulkexecutor/routing"
)

// MockResolver implements routing.Resolver with a static partition key
// definition and routing map, swappable mid-test to simulate a routing
// map change after a partition split (the scenario that drives the
// partition-gone retry path).
type MockResolver struct {
	mu sync.RWMutex

	def  *routing.PartitionKeyDefinition
	rm   *routing.RoutingMap
	none routing.PartitionKeyValue

	refreshFunc func(ctx context.Context)
	refreshCalls atomic.Int32
}

// NewMockResolver creates a MockResolver with a single catch-all range.
func NewMockResolver() *MockResolver {
	return &MockResolver{
		def: &routing.PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: routing.KindHash},
		rm: &routing.RoutingMap{Ranges: []routing.Range{
			{ID: "0", MinInclusive: "", MaxExclusive: routing.MaximumExclusive},
		}},
		none: routing.PartitionKeyValue{None: true},
	}
}

// WithPartitionKeyDefinition overrides the partition key definition.
func (m *MockResolver) WithPartitionKeyDefinition(def *routing.PartitionKeyDefinition) *MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = def
	return m
}

// WithRoutingMap overrides the routing map.
func (m *MockResolver) WithRoutingMap(rm *routing.RoutingMap) *MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rm = rm
	return m
}

// WithNonePartitionKeyValue overrides the value substituted for an
// operation whose PartitionKey.None is true.
func (m *MockResolver) WithNonePartitionKeyValue(pk routing.PartitionKeyValue) *MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.none = pk
	return m
}

// WithRefreshFunc installs a callback invoked by Refresh, letting a test
// swap in a post-split routing map the first time a partition-gone
// response forces a refresh.
func (m *MockResolver) WithRefreshFunc(fn func(ctx context.Context)) *MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshFunc = fn
	return m
}

// PartitionKeyDefinition implements routing.Resolver.
func (m *MockResolver) PartitionKeyDefinition(ctx context.Context) (*routing.PartitionKeyDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def, nil
}

// RoutingMap implements routing.Resolver.
func (m *MockResolver) RoutingMap(ctx context.Context) (*routing.RoutingMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rm, nil
}

// NonePartitionKeyValue implements routing.Resolver.
func (m *MockResolver) NonePartitionKeyValue(ctx context.Context) (routing.PartitionKeyValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.none, nil
}

// Refresh implements routing.Resolver.
func (m *MockResolver) Refresh(ctx context.Context) {
	m.refreshCalls.Add(1)
	m.mu.RLock()
	fn := m.refreshFunc
	m.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

// RefreshCallCount returns how many times Refresh was called.
func (m *MockResolver) RefreshCallCount() int { return int(m.refreshCalls.Load()) }
