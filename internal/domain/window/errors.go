package window

import "errors"

// Sentinel kinds for window errors.
var (
	ErrInvalidClock    = errors.New("invalid clock time; want HH:mm")
	ErrInvalidTimeZone = errors.New("invalid time zone")
)
