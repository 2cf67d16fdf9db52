package refcache

import "errors"

// Domain errors for the refcache package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, refcache.ErrFetchFailed) {
//	    // keep serving the stale snapshot
//	}
var (
	// ErrFetchFailed is returned when the store could not be read during a
	// refresh. The previous snapshot stays in place.
	ErrFetchFailed = errors.New("refcache: store fetch failed")
)
