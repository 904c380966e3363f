// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional dotenv file, an optional YAML file and
//   SKILLWATCH_* environment variables, in that order.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/window"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Player is the tracked player's display name. Required.
	Player string `koanf:"player"`

	// FeedURL is the scoreboard endpoint; the player is sent as a query parameter.
	FeedURL string `koanf:"feed_url"`

	// WindowStart and WindowEnd bound the daily active window ("HH:mm").
	WindowStart string `koanf:"window_start"`
	WindowEnd   string `koanf:"window_end"`

	// TimeZone is the IANA zone the window is evaluated in.
	TimeZone string `koanf:"time_zone"`

	// RefreshInterval is the fetch cadence while active.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// CheckInterval is how often window membership is re-evaluated.
	CheckInterval time.Duration `koanf:"check_interval"`

	// FetchTimeout bounds one upstream request.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// UpstreamRPS and UpstreamBurst bound request rate against the scoreboard.
	// UpstreamRPS <= 0 disables the limit.
	UpstreamRPS   float64 `koanf:"upstream_rps"`
	UpstreamBurst int     `koanf:"upstream_burst"`

	// UserAgent is sent with every upstream request.
	UserAgent string `koanf:"user_agent"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		FeedURL:         feed.DefaultURL,
		WindowStart:     window.DefaultStart,
		WindowEnd:       window.DefaultEnd,
		TimeZone:        window.DefaultTimeZone,
		RefreshInterval: 60 * time.Second,
		CheckInterval:   30 * time.Second,
		FetchTimeout:    10 * time.Second,
		UpstreamRPS:     0.2,
		UpstreamBurst:   2,
		UserAgent:       "skillwatch/1.0",
	}
}

// Window parses the configured active window.
func (c *Config) Window() (window.Window, error) {
	w, err := window.Parse(c.WindowStart, c.WindowEnd, c.TimeZone)
	if err != nil {
		return window.Window{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return w, nil
}

// RequirePlayer fails with ErrMissingPlayer when no player is configured.
func (c *Config) RequirePlayer() error {
	if strings.TrimSpace(c.Player) == "" {
		return ErrMissingPlayer
	}
	return nil
}

// UpstreamRefill is the time the limiter needs for one token, zero when the
// limit is disabled.
func (c *Config) UpstreamRefill() time.Duration {
	if c.UpstreamRPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.UpstreamRPS)
}

// Validate checks everything except the player, which is only required by
// the tracking service.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh_interval must be positive", ErrInvalidConfig)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch_timeout must be positive", ErrInvalidConfig)
	}
	if c.UpstreamRPS > 0 && c.UpstreamBurst < 1 {
		return fmt.Errorf("%w: upstream_burst must be at least 1", ErrInvalidConfig)
	}
	// A fetch waits for a limiter token inside its timeout.
	if refill := c.UpstreamRefill(); refill > 0 && c.FetchTimeout <= refill {
		return fmt.Errorf("%w: fetch_timeout %s must exceed the upstream refill time %s",
			ErrInvalidConfig, c.FetchTimeout, refill)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	return nil
}
