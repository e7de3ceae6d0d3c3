package serializer

import (
	"encoding/json"
	"testing"
)

func TestSerializeIncludesOperationTypeAndID(t *testing.T) {
	out, err := Serialize(KindCreate, "doc-1", map[string]string{"name": "alice"})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var decoded wireOperation
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.OperationType != "Create" {
		t.Errorf("OperationType = %q, want Create", decoded.OperationType)
	}
	if decoded.ID != "doc-1" {
		t.Errorf("ID = %q, want doc-1", decoded.ID)
	}
	if string(decoded.ResourceBody) != `{"name":"alice"}` {
		t.Errorf("ResourceBody = %s, want {\"name\":\"alice\"}", decoded.ResourceBody)
	}
}

func TestSerializeNilPayload(t *testing.T) {
	out, err := Serialize(KindDelete, "doc-2", nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	var decoded wireOperation
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ResourceBody != nil {
		t.Errorf("ResourceBody = %s, want nil", decoded.ResourceBody)
	}
}

func TestComposeBatchBodyFramesAsArray(t *testing.T) {
	bodies := [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)}
	out, err := ComposeBatchBody(bodies)
	if err != nil {
		t.Fatalf("ComposeBatchBody: %v", err)
	}

	var decoded []json.RawMessage
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("len(decoded) = %d, want 2", len(decoded))
	}
}

func TestComposeBatchBodyEmpty(t *testing.T) {
	out, err := ComposeBatchBody(nil)
	if err != nil {
		t.Fatalf("ComposeBatchBody: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("got %s, want []", out)
	}
}
