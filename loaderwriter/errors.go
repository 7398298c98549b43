package loaderwriter

import "fmt"

// LoadingError reports that the loader failed while the cache consulted it.
// The original loader error is the wrapped cause.
type LoadingError struct {
	cause error
}

// NewLoadingError wraps cause as a loading failure.
func NewLoadingError(cause error) *LoadingError {
	return &LoadingError{cause: cause}
}

func (e *LoadingError) Error() string { return fmt.Sprintf("loading failed: %v", e.cause) }
func (e *LoadingError) Unwrap() error { return e.cause }

// WritingError reports that the writer failed while the cache drove it.
type WritingError struct {
	cause error
}

// NewWritingError wraps cause as a writing failure.
func NewWritingError(cause error) *WritingError {
	return &WritingError{cause: cause}
}

func (e *WritingError) Error() string { return fmt.Sprintf("writing failed: %v", e.cause) }
func (e *WritingError) Unwrap() error { return e.cause }

/*
BulkLoadingError is a structured bulk-load failure: the keys that did load,
with their values, and the keys that failed, with their errors. The cache
passes it through unchanged so callers keep the per-key outcome.
*/
type BulkLoadingError[K comparable, V any] struct {
	Successes map[K]V
	Failures  map[K]error
}

func (e *BulkLoadingError[K, V]) Error() string {
	return fmt.Sprintf("bulk loading failed for %d keys (%d loaded)", len(e.Failures), len(e.Successes))
}

/*
BulkWritingError is the bulk-write/delete analogue: keys whose write reached
the source, and keys whose write failed, with their errors.
*/
type BulkWritingError[K comparable] struct {
	Successes []K
	Failures  map[K]error
}

func (e *BulkWritingError[K]) Error() string {
	return fmt.Sprintf("bulk writing failed for %d keys (%d written)", len(e.Failures), len(e.Successes))
}
