package routing

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a Resolver, caching its partition key definition and
// none value for its whole lifetime and its routing map for ttl, serving
// concurrent routing-map callers a single in-flight fetch rather than a
// stampede. Refresh (called by the dispatcher after a stale-routing error)
// invalidates the routing map cache immediately.
//
// Adapted from the connection pool's "build, try-insert, dispose-on-loss"
// discipline: only the first caller past an expired cache performs the
// fetch; latecomers wait on the same result instead of issuing their own.
type CachedResolver struct {
	inner Resolver
	ttl   time.Duration

	mu        sync.Mutex
	def       *PartitionKeyDefinition
	rm        *RoutingMap
	rmFetched time.Time
	none      *PartitionKeyValue
	inflight  chan struct{}
}

// NewCachedResolver wraps inner with a ttl-bounded routing-map cache. A ttl
// of zero disables routing-map caching: every RoutingMap call passes
// straight through. The definition and none value are cached regardless.
func NewCachedResolver(inner Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, ttl: ttl}
}

func (c *CachedResolver) PartitionKeyDefinition(ctx context.Context) (*PartitionKeyDefinition, error) {
	c.mu.Lock()
	if c.def != nil {
		def := c.def
		c.mu.Unlock()
		return def, nil
	}
	c.mu.Unlock()

	def, err := c.inner.PartitionKeyDefinition(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.def == nil {
		c.def = def
	}
	cached := c.def
	c.mu.Unlock()
	return cached, nil
}

func (c *CachedResolver) NonePartitionKeyValue(ctx context.Context) (PartitionKeyValue, error) {
	c.mu.Lock()
	if c.none != nil {
		v := *c.none
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.inner.NonePartitionKeyValue(ctx)
	if err != nil {
		return PartitionKeyValue{}, err
	}

	c.mu.Lock()
	if c.none == nil {
		c.none = &v
	}
	cached := *c.none
	c.mu.Unlock()
	return cached, nil
}

func (c *CachedResolver) RoutingMap(ctx context.Context) (*RoutingMap, error) {
	if c.ttl <= 0 {
		return c.inner.RoutingMap(ctx)
	}

	c.mu.Lock()
	if c.rm != nil && time.Since(c.rmFetched) < c.ttl {
		rm := c.rm
		c.mu.Unlock()
		return rm, nil
	}
	if c.inflight != nil {
		wait := c.inflight
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		rm := c.rm
		c.mu.Unlock()
		return rm, nil
	}
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	rm, err := c.inner.RoutingMap(ctx)

	c.mu.Lock()
	if err == nil {
		c.rm = rm
		c.rmFetched = time.Now()
	}
	c.inflight = nil
	close(done)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return rm, nil
}

// Refresh drops the cached routing map so the next call reloads it. Called
// by the dispatcher/retry policy after observing a partition-gone response.
func (c *CachedResolver) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.rm = nil
	c.mu.Unlock()
	c.inner.Refresh(ctx)
}
