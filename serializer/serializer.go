// Package serializer turns an operation's user-supplied payload into the
// wire bytes a batch body is composed of.
package serializer

import (
	"encoding/json"
	"fmt"
)

// OperationKind mirrors bulk.OperationKind without importing the bulk
// package, keeping serializer a leaf dependency the way the teacher's own
// connection-level JSON handling has no upward imports.
type OperationKind int

const (
	KindCreate OperationKind = iota
	KindRead
	KindReplace
	KindUpsert
	KindDelete
	KindPatch
)

func (k OperationKind) String() string {
	switch k {
	case KindCreate:
		return "Create"
	case KindRead:
		return "Read"
	case KindReplace:
		return "Replace"
	case KindUpsert:
		return "Upsert"
	case KindDelete:
		return "Delete"
	case KindPatch:
		return "Patch"
	default:
		return "Unknown"
	}
}

// wireOperation is the per-operation shape inside a batch request body.
type wireOperation struct {
	OperationType string          `json:"operationType"`
	ID            string          `json:"id,omitempty"`
	ResourceBody  json.RawMessage `json:"resourceBody,omitempty"`
}

// Serialize renders one operation's id, kind, and payload as the JSON
// object the server's batch protocol expects for a single operation
// entry. The result is cached by the caller (Operation.Materialize) and
// never recomputed on retry.
func Serialize(kind OperationKind, id string, payload interface{}) ([]byte, error) {
	var body json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("serializer: marshaling payload: %w", err)
		}
		body = raw
	}

	wire := wireOperation{
		OperationType: kind.String(),
		ID:            id,
		ResourceBody:  body,
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("serializer: marshaling operation: %w", err)
	}
	return out, nil
}

// ComposeBatchBody concatenates already-serialized operation bodies, in
// admission order, into a single JSON array; the framed batch body the
// transport sends. The framing itself (array-of-objects) is the one
// concrete choice this codebase makes; the wire protocol beyond that is
// treated as opaque per the batch contract.
func ComposeBatchBody(opBodies [][]byte) ([]byte, error) {
	out := make([]byte, 0, len(opBodies)*64+2)
	out = append(out, '[')
	for i, b := range opBodies {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, b...)
	}
	out = append(out, ']')
	return out, nil
}
