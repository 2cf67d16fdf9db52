package publisher

import "errors"

// Sentinel errors for publish pipeline operations.
// Use errors.Is() to check against these values.
var (
	// ErrClosed indicates the pipeline has been closed and no longer
	// accepts batches.
	ErrClosed = errors.New("publisher: pipeline closed")

	// ErrNotStarted indicates Enqueue was called before Start.
	ErrNotStarted = errors.New("publisher: pipeline not started")
)
