package scheduler

import (
	"time"

	"github.com/okian/skillwatch/internal/domain/window"
	"github.com/okian/skillwatch/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithWindow sets the initial active window.
func WithWindow(w window.Window) Option {
	return func(s *Scheduler) {
		s.win = w
	}
}

// WithRefreshInterval sets the fetch cadence while active.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithCheckInterval sets how often the window membership is re-evaluated.
// The cron scheduler rounds anything below a second up to one second.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithFetchTimeout bounds a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source used for window evaluation and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
