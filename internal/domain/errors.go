package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewDomainError to tag failures so callers
// can dispatch on errors.Is without string matching.
var (
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrToolNotFound = fmt.Errorf("tool not found")
	ErrInternal     = fmt.Errorf("internal error")
)

// Search path sentinels.
var (
	ErrBackendUnavailable = fmt.Errorf("search backend unavailable")
	ErrBackendError       = fmt.Errorf("search backend error")
	ErrMalformedResponse  = fmt.Errorf("malformed search backend response")
)

// Scrape path sentinels.
var (
	ErrFetchFailed        = fmt.Errorf("fetch failed")
	ErrTooManyRedirects   = fmt.Errorf("too many redirects")
	ErrResponseTooLarge   = fmt.Errorf("response body exceeds size limit")
	ErrUnparsableDocument = fmt.Errorf("document could not be parsed")
	ErrUnsupportedContent = fmt.Errorf("unsupported content type")
)

// Protocol sentinels.
var (
	ErrNotInitialized = fmt.Errorf("server not initialized")
	ErrSessionClosed  = fmt.Errorf("session closed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Fetcher.Fetch")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FetchStatusError carries the HTTP status of a failed fetch. It unwraps to
// ErrFetchFailed so errors.Is(err, ErrFetchFailed) holds.
type FetchStatusError struct {
	Status int
}

func (e *FetchStatusError) Error() string {
	return fmt.Sprintf("fetch failed with HTTP %d", e.Status)
}

func (e *FetchStatusError) Unwrap() error { return ErrFetchFailed }

// ErrorKind returns a machine-readable kind string for protocol error objects.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "validation_error"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrBackendError):
		return "backend_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_backend_response"
	case errors.Is(err, ErrTooManyRedirects):
		return "too_many_redirects"
	case errors.Is(err, ErrResponseTooLarge):
		return "response_too_large"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, ErrUnparsableDocument):
		return "unparsable_document"
	case errors.Is(err, ErrUnsupportedContent):
		return "unsupported_content_type"
	case errors.Is(err, ErrToolNotFound):
		return "unknown_tool"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal_error"
	}
}
