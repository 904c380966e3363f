package hiscore

import (
	"errors"
	"fmt"
)

// Sentinel kinds for upstream errors.
var (
	ErrTransport      = errors.New("upstream transport error")
	ErrEmptyPlayer    = errors.New("player name is empty")
	ErrInvalidFeedURL = errors.New("invalid feed url")

	// ErrThrottled means the rate limiter denied the request before
	// anything was sent.
	ErrThrottled = errors.New("upstream rate limit reached")
)

// TransportError describes a failed request or a non-2xx response.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", ErrTransport, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

// Unwrap exposes both ErrTransport and the underlying cause to errors.Is.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}
