package errors

import "fmt"

// ErrorCode represents a resolution error code.
type ErrorCode string

const (
	ErrMalformedUSI         ErrorCode = "MALFORMED_USI"          // 400, input-level, never retryable
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrIndexTypeUnsupported ErrorCode = "INDEX_TYPE_UNSUPPORTED" // 400, data-level
	ErrRunNotFound          ErrorCode = "RUN_NOT_FOUND"          // 404, resolution-level
	ErrIndexOutOfRange      ErrorCode = "INDEX_OUT_OF_RANGE"     // 404, data-level
	ErrAmbiguousRun         ErrorCode = "AMBIGUOUS_RUN"          // 409, resolution-level
	ErrFormatProbe          ErrorCode = "FORMAT_PROBE"           // 502, environment-level
	ErrBackendUnavailable   ErrorCode = "BACKEND_UNAVAILABLE"    // 503, environment-level
	ErrIncompleteSpectrum   ErrorCode = "INCOMPLETE_SPECTRUM"    // 500, invariant violation
	ErrInternal             ErrorCode = "INTERNAL"               // 500
)

// ResolveError represents a structured error with code, status, and details.
type ResolveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// NewMalformedUSI creates a 400 error for an unparseable USI string.
func NewMalformedUSI(usi, reason string) *ResolveError {
	return &ResolveError{
		Code:    ErrMalformedUSI,
		Status:  400,
		Message: fmt.Sprintf("malformed USI %q: %s", usi, reason),
		Details: map[string]any{"usi": usi},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ResolveError {
	return &ResolveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewRunNotFound creates a 404 error for when no prefix contains the run.
func NewRunNotFound(collection, run string, prefixes []string) *ResolveError {
	return &ResolveError{
		Code:    ErrRunNotFound,
		Status:  404,
		Message: fmt.Sprintf("run %q not found in collection %q under any prefix", run, collection),
		Details: map[string]any{"collection": collection, "run": run, "prefixes": prefixes},
	}
}

// NewAmbiguousRun creates a 409 error for multiple format matches in one prefix.
func NewAmbiguousRun(prefix, run string, candidates []string) *ResolveError {
	return &ResolveError{
		Code:    ErrAmbiguousRun,
		Status:  409,
		Message: fmt.Sprintf("run %q matches multiple raw formats under prefix %q", run, prefix),
		Details: map[string]any{"prefix": prefix, "run": run, "candidates": candidates},
	}
}

// NewFormatProbe creates a 502 error for an I/O fault during format detection.
func NewFormatProbe(path string, cause error) *ResolveError {
	return &ResolveError{
		Code:    ErrFormatProbe,
		Status:  502,
		Message: fmt.Sprintf("format probe failed at %s: %v", path, cause),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// NewBackendUnavailable creates a 503 error for a missing reader backend.
func NewBackendUnavailable(backend, reason string) *ResolveError {
	return &ResolveError{
		Code:    ErrBackendUnavailable,
		Status:  503,
		Message: fmt.Sprintf("%s backend unavailable: %s", backend, reason),
		Details: map[string]any{"backend": backend},
	}
}

// NewIndexOutOfRange creates a 404 error for an index beyond the run's extent.
func NewIndexOutOfRange(kind string, value, count int) *ResolveError {
	return &ResolveError{
		Code:    ErrIndexOutOfRange,
		Status:  404,
		Message: fmt.Sprintf("%s %d out of range (run has %d spectra)", kind, value, count),
		Details: map[string]any{"index_type": kind, "value": value, "count": count},
	}
}

// NewIndexTypeUnsupported creates a 400 error for an unaddressable index type.
func NewIndexTypeUnsupported(backend, kind string) *ResolveError {
	return &ResolveError{
		Code:    ErrIndexTypeUnsupported,
		Status:  400,
		Message: fmt.Sprintf("%s backend cannot address spectra by %s", backend, kind),
		Details: map[string]any{"backend": backend, "index_type": kind},
	}
}

// NewIncompleteSpectrum creates a 500 error for a structurally invalid spectrum.
func NewIncompleteSpectrum(msg string) *ResolveError {
	return &ResolveError{
		Code:    ErrIncompleteSpectrum,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ResolveError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ResolveError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is a ResolveError with the given code.
func Is(err error, code ErrorCode) bool {
	if rErr, ok := err.(*ResolveError); ok {
		return rErr.Code == code
	}
	return false
}
