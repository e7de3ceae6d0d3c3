// Package routing resolves an operation's partition key to the server-side
// partition range that currently owns it.
package routing

import (
	"context"
	"fmt"
	"sort"
)

// PartitionKeyValue is the value of a partition key attached to an
// operation. None is an explicit sentinel distinct from a zero-value or
// absent key: a document whose collection defines a partition key but
// whose value was intentionally omitted routes through the "none" range,
// not through a nil/empty Components slice.
type PartitionKeyValue struct {
	Components []interface{}
	None       bool
}

// PartitionKeyKind distinguishes hash-partitioning schemes.
type PartitionKeyKind int

const (
	// KindHash is a single-path hash partition key (the common case).
	KindHash PartitionKeyKind = iota
	// KindMultiHash is a multi-path (composite) hash partition key.
	KindMultiHash
)

// PartitionKeyDefinition describes how a collection's partition key is
// shaped and hashed, fetched once from the container collaborator and
// cached by the Resolver implementation.
type PartitionKeyDefinition struct {
	Paths []string
	Kind  PartitionKeyKind
}

// Range identifies one partition range and the hash interval it owns.
// MinInclusive/MaxExclusive are hex-encoded effective-partition-key
// boundaries, matching the wire representation of a routing map entry,
// with one exception: the last range in a collection carries the literal
// sentinel "FF" as its MaxExclusive rather than a 16-hex-char value, since
// no fixed-width value can compare greater than every possible hash
// (including one that itself starts with "FF"). exceeds treats that
// sentinel (MaximumExclusive) specially.
type Range struct {
	ID           string
	MinInclusive string
	MaxExclusive string
}

// MaximumExclusive is the wire sentinel marking a range with no upper
// bound: the last partition range in a collection's routing map.
const MaximumExclusive = "FF"

// exceeds reports whether max (a range's MaxExclusive) sorts after epk,
// treating the MaximumExclusive sentinel as greater than any real,
// fixed-width hex-encoded effective partition key.
func exceeds(max, epk string) bool {
	if max == MaximumExclusive {
		return true
	}
	return max > epk
}

// RoutingMap is a snapshot of a collection's partition ranges, ordered by
// MinInclusive so RangeID can binary-search it.
type RoutingMap struct {
	Ranges []Range
}

// Resolver is the routing collaborator: partition-key definition and
// routing-map lookup, refreshed on demand when the dispatcher observes a
// stale-routing error. Implementations must be safe for concurrent use.
type Resolver interface {
	// PartitionKeyDefinition returns the collection's partition key shape.
	PartitionKeyDefinition(ctx context.Context) (*PartitionKeyDefinition, error)
	// RoutingMap returns the current partition range map. Implementations
	// should cache this and refresh lazily; Refresh forces a reload.
	RoutingMap(ctx context.Context) (*RoutingMap, error)
	// NonePartitionKeyValue returns the sentinel value routed to when an
	// operation carries no partition key at all.
	NonePartitionKeyValue(ctx context.Context) (PartitionKeyValue, error)
	// Refresh forces the next RoutingMap call to bypass any cache.
	Refresh(ctx context.Context)
}

// RangeID is a pure function: given a partition key value, the
// collection's partition key definition, and a routing map snapshot, it
// returns the id of the range that owns that key. It performs no I/O and
// has no side effects, so the same inputs always produce the same output
// regardless of how many times an operation is rebatched.
func RangeID(pk PartitionKeyValue, def *PartitionKeyDefinition, rm *RoutingMap) (string, error) {
	if def == nil {
		return "", fmt.Errorf("routing: nil partition key definition")
	}
	if rm == nil || len(rm.Ranges) == 0 {
		return "", fmt.Errorf("routing: empty routing map")
	}

	epk, err := effectivePartitionKey(pk, def)
	if err != nil {
		return "", err
	}

	ranges := rm.Ranges
	i := sort.Search(len(ranges), func(i int) bool {
		return exceeds(ranges[i].MaxExclusive, epk)
	})
	if i == len(ranges) {
		return "", fmt.Errorf("routing: effective partition key %q maps past the last range", epk)
	}
	if epk < ranges[i].MinInclusive {
		return "", fmt.Errorf("routing: effective partition key %q falls in a gap before range %s", epk, ranges[i].ID)
	}
	return ranges[i].ID, nil
}

// effectivePartitionKey hashes pk according to def into its hex-encoded
// wire form. A None value hashes to a fixed sentinel string shared by every
// collection, matching the server's own treatment of missing keys.
func effectivePartitionKey(pk PartitionKeyValue, def *PartitionKeyDefinition) (string, error) {
	if pk.None {
		return noneEffectivePartitionKey, nil
	}
	if len(pk.Components) == 0 {
		return "", fmt.Errorf("routing: partition key value has no components and is not marked None")
	}

	switch def.Kind {
	case KindHash:
		if len(pk.Components) != 1 {
			return "", fmt.Errorf("routing: hash partition key expects 1 component, got %d", len(pk.Components))
		}
		return hashComponent(pk.Components[0]), nil
	case KindMultiHash:
		return hashComponents(pk.Components), nil
	default:
		return "", fmt.Errorf("routing: unknown partition key kind %d", def.Kind)
	}
}
