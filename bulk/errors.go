package bulk

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"
)

// InvalidUsageError reports an unsupported options combination, a
// mismatched partition key, or another caller-side misuse detected
// synchronously on Add.
type InvalidUsageError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *InvalidUsageError) Error() string { return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause) }
func (e *InvalidUsageError) Unwrap() error { return e.Cause }
func (e *InvalidUsageError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// RoutingStaleError is surfaced only after the PartitionKeyRangeGoneRetry
// budget is exhausted on a persistently stale route.
type RoutingStaleError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *RoutingStaleError) Error() string { return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause) }
func (e *RoutingStaleError) Unwrap() error { return e.Cause }
func (e *RoutingStaleError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// ThrottledError is surfaced only after the ResourceThrottleRetry budget
// (attempt count or cumulative wait time) is exhausted.
type ThrottledError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *ThrottledError) Error() string { return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause) }
func (e *ThrottledError) Unwrap() error { return e.Cause }
func (e *ThrottledError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// BusinessError wraps any terminal per-operation status the retry policy
// does not retry (4xx/5xx other than partition-gone/throttled).
type BusinessError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *BusinessError) Error() string { return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause) }
func (e *BusinessError) Unwrap() error { return e.Cause }
func (e *BusinessError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// TransportFailureError reports a whole-batch failure: a connection error
// or a malformed response that never produced per-operation results.
type TransportFailureError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *TransportFailureError) Error() string {
	return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause)
}
func (e *TransportFailureError) Unwrap() error { return e.Cause }
func (e *TransportFailureError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// CancelledError reports caller- or shutdown-initiated cancellation.
type CancelledError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *CancelledError) Error() string { return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause) }
func (e *CancelledError) Unwrap() error { return e.Cause }
func (e *CancelledError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// ProtocolViolationError reports a result-count mismatch or malformed
// batch response: a bug, not a transient condition, so it is never masked
// as retryable.
type ProtocolViolationError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (e *ProtocolViolationError) Error() string {
	return formatErrorJSON(e.Code, e.Type, e.Message, e.Details, e.Cause)
}
func (e *ProtocolViolationError) Unwrap() error { return e.Cause }
func (e *ProtocolViolationError) FormatError(debugMode bool) string {
	return formatError(debugMode, e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp)
}

// newStamped fills in Timestamp and StackTrace for any of the constructors
// below; callers just supply code/type/message/details/cause.
func newStamped() (time.Time, []string) {
	return time.Now(), captureStackTrace()
}

func newInvalidUsageError(code, message string, details map[string]interface{}) *InvalidUsageError {
	ts, st := newStamped()
	return &InvalidUsageError{Code: code, Type: "INVALID_USAGE", Message: message, Details: details, StackTrace: st, Timestamp: ts}
}

func newRoutingStaleError(message string, details map[string]interface{}, cause error) *RoutingStaleError {
	ts, st := newStamped()
	return &RoutingStaleError{Code: "ROUTING_STALE", Type: "ROUTING_STALE", Message: message, Details: details, Cause: cause, StackTrace: st, Timestamp: ts}
}

func newThrottledError(message string, details map[string]interface{}) *ThrottledError {
	ts, st := newStamped()
	return &ThrottledError{Code: "THROTTLED", Type: "THROTTLED", Message: message, Details: details, StackTrace: st, Timestamp: ts}
}

func newBusinessError(statusCode int, details map[string]interface{}) *BusinessError {
	ts, st := newStamped()
	return &BusinessError{
		Code:       fmt.Sprintf("BUSINESS_ERROR_%d", statusCode),
		Type:       "BUSINESS_ERROR",
		Message:    fmt.Sprintf("operation failed with status %d", statusCode),
		Details:    details,
		StackTrace: st,
		Timestamp:  ts,
	}
}

func newTransportFailureError(message string, cause error) *TransportFailureError {
	ts, st := newStamped()
	return &TransportFailureError{Code: "TRANSPORT_FAILURE", Type: "TRANSPORT_FAILURE", Message: message, Cause: cause, StackTrace: st, Timestamp: ts}
}

func newCancelledError(message string) *CancelledError {
	ts, st := newStamped()
	return &CancelledError{Code: "CANCELLED", Type: "CANCELLED", Message: message, StackTrace: st, Timestamp: ts}
}

func newProtocolViolationError(message string, details map[string]interface{}) *ProtocolViolationError {
	ts, st := newStamped()
	return &ProtocolViolationError{Code: "PROTOCOL_VIOLATION", Type: "PROTOCOL_VIOLATION", Message: message, Details: details, StackTrace: st, Timestamp: ts}
}

// formatErrorJSON renders the backward-compatible Error() JSON: code,
// type, message, details if present, cause summary if present.
func formatErrorJSON(code, typ, message string, details map[string]interface{}, cause error) string {
	data := map[string]interface{}{"code": code, "type": typ, "message": message}
	if len(details) > 0 {
		data["details"] = details
	}
	if cause != nil {
		data["cause"] = map[string]interface{}{"message": cause.Error()}
	}
	b, _ := json.Marshal(data)
	return string(b)
}

// formatError implements the shared FormatError(debugMode bool) behavior:
// terse "CODE: message" in production, full indented JSON with stack
// trace and timestamp under debug mode.
func formatError(debugMode bool, code, typ, message string, details map[string]interface{}, cause error, stack []string, ts time.Time) string {
	if !debugMode {
		if cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", code, message, cause.Error())
		}
		return fmt.Sprintf("%s: %s", code, message)
	}

	data := map[string]interface{}{"code": code, "type": typ, "message": message}
	if len(details) > 0 {
		data["details"] = details
	}
	if cause != nil {
		data["cause"] = map[string]interface{}{"message": cause.Error()}
	}
	if len(stack) > 0 {
		data["stack_trace"] = stack
	}
	if !ts.IsZero() {
		data["timestamp"] = ts.Format(time.RFC3339Nano)
	}
	b, _ := json.MarshalIndent(data, "", "  ")
	return string(b)
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs)

	frames := make([]string, 0, n)
	callerFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callerFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return frames
}

// FormatError formats any error with debug-mode support, falling back to
// err.Error() for errors that don't implement the FormatError(bool)
// interface.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}
	type debugFormatter interface {
		FormatError(bool) string
	}
	if f, ok := err.(debugFormatter); ok {
		return f.FormatError(debugMode)
	}
	return err.Error()
}
