package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransportDispatchSetsRequiredHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		resp := wireBatchResponse{
			StatusCode:    200,
			RequestCharge: 10,
			Results:       []wireOpResult{{StatusCode: 201}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(DefaultHTTPOptions(srv.URL))
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	defer tr.Close()

	_, err = tr.Dispatch(context.Background(), &BatchRequest{PartitionRangeID: "5", Body: []byte(`[{}]`)})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if got := gotHeaders.Get(HeaderPartitionKeyRangeID); got != "5" {
		t.Errorf("%s = %q, want 5", HeaderPartitionKeyRangeID, got)
	}
	if got := gotHeaders.Get(HeaderBatchContinueOnErr); got != "true" {
		t.Errorf("%s = %q, want true", HeaderBatchContinueOnErr, got)
	}
	if got := gotHeaders.Get(HeaderIsBatchRequest); got != "true" {
		t.Errorf("%s = %q, want true", HeaderIsBatchRequest, got)
	}
}

func TestHTTPTransportDispatchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wireBatchResponse{
			StatusCode:    200,
			RequestCharge: 4.2,
			Results: []wireOpResult{
				{StatusCode: 201, ETag: "etag-1"},
				{StatusCode: 429, SubStatus: 3200, RetryAfterMs: 50},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(DefaultHTTPOptions(srv.URL))
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	defer tr.Close()

	out, err := tr.Dispatch(context.Background(), &BatchRequest{PartitionRangeID: "0", Body: []byte(`[{},{}]`)})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(out.Results))
	}
	if out.Results[0].ETag != "etag-1" {
		t.Errorf("Results[0].ETag = %q, want etag-1", out.Results[0].ETag)
	}
	if out.Results[1].StatusCode != 429 {
		t.Errorf("Results[1].StatusCode = %d, want 429", out.Results[1].StatusCode)
	}
}

func TestHTTPTransportDispatchAfterCloseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(DefaultHTTPOptions(srv.URL))
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	if _, err := tr.Dispatch(context.Background(), &BatchRequest{Body: []byte(`[]`)}); err == nil {
		t.Fatal("expected error dispatching on a closed transport")
	}
}

func TestNewHTTPTransportRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPTransport(HTTPOptions{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
