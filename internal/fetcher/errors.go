package fetcher

import "fmt"

// ErrorKind classifies a fetch failure. The crawler and resolver map
// kinds onto run diagnostics; they never retry themselves because the
// Fetcher has already exhausted its retry budget by the time an error
// escapes.
type ErrorKind int

// ErrorKind values.
const (
	// KindTransient marks failures that were retried and still
	// failed: connection resets, timeouts, 429, 5xx.
	KindTransient ErrorKind = iota

	// KindFatal marks failures that are not worth retrying:
	// 4xx other than 429, unresolvable hosts, malformed URLs.
	KindFatal

	// KindTimeout marks a per-call deadline expiry.
	KindTimeout
)

// String returns the kind name for logging and diagnostics.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure for a single URL.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// URL is the URL whose fetch failed.
	URL string

	// StatusCode is the last HTTP status observed, zero when the
	// request never completed.
	StatusCode int

	// Err is the underlying error, nil for pure status failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: status %d", e.URL, e.Kind, e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}
