package bulk

import (
	"errors"
	"strings"
	"testing"
)

func TestInvalidUsageErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := newInvalidUsageError("BAD", "bad usage", nil)
	err.Cause = cause
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestErrorMessageContainsCodeAndMessage(t *testing.T) {
	err := newThrottledError("throttled after exhausting budget", map[string]interface{}{"attempts": 9})
	msg := err.Error()
	if !strings.Contains(msg, "THROTTLED") {
		t.Errorf("Error() = %q, want to contain THROTTLED", msg)
	}
	if !strings.Contains(msg, "throttled after exhausting budget") {
		t.Errorf("Error() = %q, want to contain the message", msg)
	}
}

func TestFormatErrorProductionModeIsTerse(t *testing.T) {
	err := newRoutingStaleError("stale routing", nil, errors.New("inner"))
	out := err.FormatError(false)
	if strings.Contains(out, "stack_trace") {
		t.Error("production mode should not include a stack trace")
	}
	if !strings.Contains(out, "ROUTING_STALE") {
		t.Errorf("FormatError(false) = %q, want to contain ROUTING_STALE", out)
	}
}

func TestFormatErrorDebugModeIncludesStackTrace(t *testing.T) {
	err := newProtocolViolationError("result count mismatch", nil)
	out := err.FormatError(true)
	if !strings.Contains(out, "stack_trace") {
		t.Error("debug mode should include a stack trace")
	}
	if !strings.Contains(out, "timestamp") {
		t.Error("debug mode should include a timestamp")
	}
}

func TestBusinessErrorCodeIncludesStatusCode(t *testing.T) {
	err := newBusinessError(404, nil)
	if err.Code != "BUSINESS_ERROR_404" {
		t.Errorf("Code = %q, want BUSINESS_ERROR_404", err.Code)
	}
}

func TestPackageFormatErrorFallsBackToPlainErrorString(t *testing.T) {
	plain := errors.New("plain error")
	if got := FormatError(plain, true); got != "plain error" {
		t.Errorf("FormatError fallback = %q, want %q", got, "plain error")
	}
}

func TestPackageFormatErrorNilReturnsEmptyString(t *testing.T) {
	if got := FormatError(nil, true); got != "" {
		t.Errorf("FormatError(nil) = %q, want empty", got)
	}
}

func TestCapturedStackTraceIsNonEmpty(t *testing.T) {
	err := newCancelledError("cancelled")
	if len(err.StackTrace) == 0 {
		t.Error("expected a non-empty captured stack trace")
	}
}
