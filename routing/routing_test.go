package routing

import "testing"

func singleRangeMap() *RoutingMap {
	return &RoutingMap{Ranges: []Range{{ID: "0", MinInclusive: "", MaxExclusive: MaximumExclusive}}}
}

func twoRangeMap() *RoutingMap {
	return &RoutingMap{Ranges: []Range{
		{ID: "0", MinInclusive: "", MaxExclusive: "8000000000000000"},
		{ID: "1", MinInclusive: "8000000000000000", MaxExclusive: MaximumExclusive},
	}}
}

func TestRangeIDSingleRange(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	id, err := RangeID(PartitionKeyValue{Components: []interface{}{"tenant-1"}}, def, singleRangeMap())
	if err != nil {
		t.Fatalf("RangeID: %v", err)
	}
	if id != "0" {
		t.Errorf("RangeID = %q, want 0", id)
	}
}

func TestRangeIDNoneValue(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	id, err := RangeID(PartitionKeyValue{None: true}, def, singleRangeMap())
	if err != nil {
		t.Fatalf("RangeID: %v", err)
	}
	if id != "0" {
		t.Errorf("RangeID = %q, want 0", id)
	}
}

func TestRangeIDNoneValueFallsInHighRangeWithMaximumExclusiveBoundary(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	id, err := RangeID(PartitionKeyValue{None: true}, def, twoRangeMap())
	if err != nil {
		t.Fatalf("RangeID: %v", err)
	}
	if id != "1" {
		t.Errorf("RangeID = %q, want 1 (none sentinel falls in the top range bounded by MaximumExclusive)", id)
	}
}

func TestRangeIDNilDefinitionErrors(t *testing.T) {
	if _, err := RangeID(PartitionKeyValue{None: true}, nil, singleRangeMap()); err == nil {
		t.Fatal("expected error for nil definition")
	}
}

func TestRangeIDEmptyRoutingMapErrors(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	if _, err := RangeID(PartitionKeyValue{None: true}, def, &RoutingMap{}); err == nil {
		t.Fatal("expected error for empty routing map")
	}
}

func TestRangeIDHashKindRejectsMultipleComponents(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	_, err := RangeID(PartitionKeyValue{Components: []interface{}{"a", "b"}}, def, singleRangeMap())
	if err == nil {
		t.Fatal("expected error for hash kind with multiple components")
	}
}

func TestRangeIDMultiHashKind(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/a", "/b"}, Kind: KindMultiHash}
	id, err := RangeID(PartitionKeyValue{Components: []interface{}{"a", "b"}}, def, singleRangeMap())
	if err != nil {
		t.Fatalf("RangeID: %v", err)
	}
	if id != "0" {
		t.Errorf("RangeID = %q, want 0", id)
	}
}

func TestRangeIDRejectsValueWithNoComponentsAndNotNone(t *testing.T) {
	def := &PartitionKeyDefinition{Paths: []string{"/pk"}, Kind: KindHash}
	_, err := RangeID(PartitionKeyValue{}, def, singleRangeMap())
	if err == nil {
		t.Fatal("expected error for empty components and None=false")
	}
}
