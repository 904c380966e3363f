package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrNilFetcher     = errors.New("fetch function is nil")
	ErrNilStore       = errors.New("store is nil")
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")

	// ErrSkipped is wrapped by a FetchFunc that gave up before contacting
	// the upstream. The cached state is left untouched.
	ErrSkipped = errors.New("fetch skipped")
)
