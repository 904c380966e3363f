package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/skillwatch/internal/app"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxErrorBodyBytes     = 4 << 10
)

// ErrUnexpectedStatus is returned for API answers the board cannot use.
var ErrUnexpectedStatus = errors.New("unexpected status from skillwatch")

// Client talks to a running skillwatch API.
type Client struct {
	base       string
	httpClient *http.Client
}

// NewClient returns a client for the API rooted at base, e.g. "http://localhost:9080".
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), httpClient: httpClient}
}

// Board fetches /api/board.
func (c *Client) Board(ctx context.Context) (service.Board, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/board")
	if err != nil {
		return service.Board{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return service.Board{}, statusError(resp)
	}
	var b service.Board
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return service.Board{}, fmt.Errorf("decode board: %w", err)
	}
	return b, nil
}

// Wake posts /api/refresh without waiting and reports whether a fetch started.
func (c *Client) Wake(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/refresh")
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return true, nil
	case http.StatusOK:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return fmt.Errorf("%w: %d %s: %s", ErrUnexpectedStatus, resp.StatusCode, body.Code, body.Message)
	}
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
}
