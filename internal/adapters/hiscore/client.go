// Package hiscore fetches a player's skill feed from the public scoreboard.
package hiscore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/pkg/logger"
	"github.com/okian/skillwatch/pkg/metrics"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
	defaultUserAgent    = "skillwatch/1.0"

	// RequestIDHeader carries the per-fetch correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Client fetches and parses the feed for one player at a time.
type Client struct {
	base         *url.URL
	httpClient   *http.Client
	limiter      *rate.Limiter
	parser       *feed.Parser
	userAgent    string
	maxBodyBytes int64
}

// NewClient creates a client for feedURL. An empty feedURL uses feed.DefaultURL.
func NewClient(feedURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(feedURL) == "" {
		feedURL = feed.DefaultURL
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidFeedURL, u.Scheme)
	}

	c := &Client{
		base:         u,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		limiter:      rate.NewLimiter(rate.Inf, 0),
		parser:       feed.NewParser(),
		userAgent:    defaultUserAgent,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the request URL for player.
func (c *Client) URL(player string) string {
	u := *c.base
	q := u.Query()
	q.Set("player", player)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch retrieves and parses the feed for player.
//
// Transport failures and non-2xx responses return *TransportError. When the
// rate limiter cannot admit the request before ctx ends, the error wraps
// ErrThrottled and no request is made. A body that
// is not text returns an error wrapping feed.ErrDecode. Short or malformed rows
// are not errors; they fall back to defaults.
func (c *Client) Fetch(ctx context.Context, player string) (skills.Snapshot, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return skills.Snapshot{}, ErrEmptyPlayer
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return skills.Snapshot{}, fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	metrics.RecordUpstreamWait(float64(time.Since(waitStart).Milliseconds()))

	reqID := uuid.NewString()
	log := logger.Get().Named("hiscore").With(logger.String("request_id", reqID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(player), nil)
	if err != nil {
		return skills.Snapshot{}, &TransportError{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/plain")
	req.Header.Set(RequestIDHeader, reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn(ctx, "feed request failed", logger.Error(err))
		return skills.Snapshot{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBodyBytes))
		log.Warn(ctx, "feed returned non-success status", logger.Int("status", resp.StatusCode))
		return skills.Snapshot{}, &TransportError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return skills.Snapshot{}, &TransportError{Err: err}
	}

	snap, err := c.parser.Decode(bytes.NewReader(body))
	if err != nil {
		log.Warn(ctx, "feed body rejected", logger.Error(err))
		return skills.Snapshot{}, err
	}

	if n := c.parser.Defaulted(string(body)); n > 0 {
		metrics.RecordDefaultedEntries(n)
		log.Debug(ctx, "feed shorter than entry list", logger.Int("defaulted", n))
	}
	return snap, nil
}
