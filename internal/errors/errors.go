package errors

import "fmt"

// ErrorCode is a stable, matchable Iris error code.
type ErrorCode string

const (
	ErrBootstrap      ErrorCode = "BOOTSTRAP"       // sandbox unusable; turn cannot start
	ErrStoreFull      ErrorCode = "STORE_FULL"      // CAS disk full
	ErrBlobMissing    ErrorCode = "BLOB_MISSING"    // index row exists, blob file does not
	ErrIndexCorrupt   ErrorCode = "INDEX_CORRUPT"   // memory index unreadable; recoverable by scan
	ErrSliceTooLarge  ErrorCode = "SLICE_TOO_LARGE" // fetch range exceeds hard caps
	ErrSink           ErrorCode = "SINK"            // thread sink rejected an append
	ErrLLMTimeout     ErrorCode = "LLM_TIMEOUT"     // provider call exceeded its deadline
	ErrLLM            ErrorCode = "LLM"             // provider-side failure
	ErrTool           ErrorCode = "TOOL"            // single-tool failure, non-fatal to the turn
	ErrNotFound       ErrorCode = "NOT_FOUND"       // unknown memory id or missing file
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInternal       ErrorCode = "INTERNAL"
)

// IrisError is a structured error with a stable code and optional details.
// The one-line Message is safe to surface to callers; full diagnostics
// belong in ops.log.
type IrisError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *IrisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBootstrap reports an unusable sandbox.
func NewBootstrap(reason string) *IrisError {
	return &IrisError{
		Code:    ErrBootstrap,
		Message: fmt.Sprintf("sandbox bootstrap failed: %s", reason),
		Details: map[string]any{"reason": reason},
	}
}

// NewStoreFull reports that the CAS cannot accept new blobs.
func NewStoreFull(err error) *IrisError {
	msg := "memory store is full"
	if err != nil {
		msg = fmt.Sprintf("memory store is full: %v", err)
	}
	return &IrisError{Code: ErrStoreFull, Message: msg}
}

// NewBlobMissing reports an index row whose blob file is gone.
func NewBlobMissing(memoryID string) *IrisError {
	return &IrisError{
		Code:    ErrBlobMissing,
		Message: fmt.Sprintf("blob missing for memory %s", memoryID),
		Details: map[string]any{"memory_id": memoryID},
	}
}

// NewIndexCorrupt reports an unreadable or inconsistent memory index.
func NewIndexCorrupt(err error) *IrisError {
	return &IrisError{
		Code:    ErrIndexCorrupt,
		Message: fmt.Sprintf("memory index corrupt: %v", err),
	}
}

// NewSliceTooLarge reports a fetch range over the hard cap.
func NewSliceTooLarge(requested, max int) *IrisError {
	return &IrisError{
		Code:    ErrSliceTooLarge,
		Message: fmt.Sprintf("requested range of %d exceeds maximum of %d", requested, max),
		Details: map[string]any{"requested": requested, "max": max},
	}
}

// NewSink reports a thread sink append failure.
func NewSink(err error) *IrisError {
	return &IrisError{
		Code:    ErrSink,
		Message: fmt.Sprintf("thread sink append failed: %v", err),
	}
}

// NewLLMTimeout reports an expired LLM call deadline.
func NewLLMTimeout(timeoutMS int64) *IrisError {
	return &IrisError{
		Code:    ErrLLMTimeout,
		Message: fmt.Sprintf("llm call exceeded %dms deadline", timeoutMS),
		Details: map[string]any{"timeout_ms": timeoutMS},
	}
}

// NewLLM reports a provider-side failure.
func NewLLM(err error) *IrisError {
	return &IrisError{
		Code:    ErrLLM,
		Message: fmt.Sprintf("llm call failed: %v", err),
	}
}

// NewTool reports a single-tool failure. Non-fatal: the orchestrator logs
// the failure as a tool message and continues the turn.
func NewTool(name, reason string) *IrisError {
	return &IrisError{
		Code:    ErrTool,
		Message: fmt.Sprintf("tool %s failed: %s", name, reason),
		Details: map[string]any{"name": name, "reason": reason},
	}
}

// NewNotFound reports an unknown memory id or missing file.
func NewNotFound(identifier string) *IrisError {
	return &IrisError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInvalidRequest reports invalid caller-supplied parameters.
func NewInvalidRequest(msg string) *IrisError {
	return &IrisError{Code: ErrInvalidRequest, Message: msg}
}

// NewInternal wraps an unexpected internal error.
func NewInternal(err error) *IrisError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &IrisError{Code: ErrInternal, Message: msg}
}

// Is checks if an error is an IrisError with the given code.
func Is(err error, code ErrorCode) bool {
	if iErr, ok := err.(*IrisError); ok {
		return iErr.Code == code
	}
	return false
}

// CodeOf returns the stable code for an error, or ErrInternal for
// errors that did not originate in this package.
func CodeOf(err error) ErrorCode {
	if iErr, ok := err.(*IrisError); ok {
		return iErr.Code
	}
	return ErrInternal
}
