package protocol

import "testing"

func TestClassifySuccess(t *testing.T) {
	if got := Classify(StatusOK, 0); got != Success {
		t.Fatalf("Classify(200, 0) = %v, want Success", got)
	}
	if got := Classify(StatusCreated, 0); got != Success {
		t.Fatalf("Classify(201, 0) = %v, want Success", got)
	}
}

func TestClassifyPartitionGone(t *testing.T) {
	cases := []int{SubStatusPartitionKeyRangeGone, SubStatusCompletingSplit, SubStatusCompletingPartitionMigration}
	for _, sub := range cases {
		if got := Classify(StatusGone, sub); got != PartitionGone {
			t.Fatalf("Classify(410, %d) = %v, want PartitionGone", sub, got)
		}
	}
}

func TestClassifyGoneWithUnknownSubstatusIsBusinessError(t *testing.T) {
	if got := Classify(StatusGone, 9999); got != BusinessError {
		t.Fatalf("Classify(410, 9999) = %v, want BusinessError", got)
	}
}

func TestClassifyThrottled(t *testing.T) {
	if got := Classify(StatusTooManyRq, 0); got != Throttled {
		t.Fatalf("Classify(429, 0) = %v, want Throttled", got)
	}
}

func TestClassifyBusinessError(t *testing.T) {
	for _, code := range []int{400, 404, 409, 500} {
		if got := Classify(code, 0); got != BusinessError {
			t.Fatalf("Classify(%d, 0) = %v, want BusinessError", code, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(PartitionGone) {
		t.Error("PartitionGone should be retryable")
	}
	if !IsRetryable(Throttled) {
		t.Error("Throttled should be retryable")
	}
	if IsRetryable(Success) {
		t.Error("Success should not be retryable")
	}
	if IsRetryable(BusinessError) {
		t.Error("BusinessError should not be retryable")
	}
}
