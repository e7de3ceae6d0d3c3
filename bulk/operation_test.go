package bulk

import (
	"encoding/json"
	"testing"

	"github.com/cosmosdb-go/bulkexecutor/routing"
)

func TestNewOperationGeneratesID(t *testing.T) {
	op1 := NewOperation(OpCreate, routing.PartitionKeyValue{Components: []interface{}{"a"}}, nil, OperationOptions{})
	op2 := NewOperation(OpCreate, routing.PartitionKeyValue{Components: []interface{}{"a"}}, nil, OperationOptions{})
	if op1.ID == "" {
		t.Fatal("expected a non-empty generated ID")
	}
	if op1.ID == op2.ID {
		t.Fatal("expected distinct operations to get distinct IDs")
	}
}

func TestOperationMaterializeIsCachedAcrossCalls(t *testing.T) {
	op := NewOperation(OpCreate, routing.PartitionKeyValue{None: true}, map[string]int{"v": 1}, OperationOptions{})

	body1, err := op.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	body2, err := op.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if string(body1) != string(body2) {
		t.Fatal("Materialize should return the same cached bytes on repeated calls")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body1, &decoded); err != nil {
		t.Fatalf("materialized body is not valid JSON: %v", err)
	}
	if decoded["id"] != op.ID {
		t.Errorf("materialized id = %v, want %s", decoded["id"], op.ID)
	}
}

func TestOperationOptionsUnsupported(t *testing.T) {
	cases := []struct {
		name string
		opts OperationOptions
		want bool
	}{
		{"empty", OperationOptions{}, false},
		{"consistency", OperationOptions{ConsistencyLevelOverride: "Strong"}, true},
		{"preTriggers", OperationOptions{PreTriggers: []string{"t1"}}, true},
		{"postTriggers", OperationOptions{PostTriggers: []string{"t1"}}, true},
		{"sessionToken", OperationOptions{SessionToken: "tok"}, true},
	}
	for _, c := range cases {
		if got := c.opts.unsupported(); got != c.want {
			t.Errorf("%s: unsupported() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestOperationContextResolveOnlyDeliversOnce(t *testing.T) {
	ctx := newOperationContext()
	ctx.resolve(Result{StatusCode: 201}, NewNoopLogger())
	ctx.resolve(Result{StatusCode: 500}, NewNoopLogger())

	r := ctx.Wait()
	if r.StatusCode != 201 {
		t.Errorf("Wait() = %+v, want the first resolved result (201)", r)
	}
}

func TestOperationContextSetRangeIDAndRangeID(t *testing.T) {
	ctx := newOperationContext()
	ctx.SetRangeID("5")
	if got := ctx.RangeID(); got != "5" {
		t.Errorf("RangeID() = %q, want 5", got)
	}
}

func TestOperationKindSerializerKindMapping(t *testing.T) {
	op := NewOperation(OpDelete, routing.PartitionKeyValue{None: true}, nil, OperationOptions{})
	body, err := op.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(body, &decoded)
	if decoded["operationType"] != "Delete" {
		t.Errorf("operationType = %v, want Delete", decoded["operationType"])
	}
}
