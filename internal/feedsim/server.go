// Package feedsim serves a local stand-in for the public scoreboard feed.
//
// Each player gets a deterministic starting profile that progresses with wall
// time, so a tracker polling the simulator sees slowly rising experience.
package feedsim

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithClock overrides the time source used for progression.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFailureRate answers the given fraction of requests with 503.
func WithFailureRate(rate float64) Option {
	return func(s *Server) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithUnknownPlayers answers requests for these names with 404.
func WithUnknownPlayers(names ...string) Option {
	return func(s *Server) {
		for _, n := range names {
			s.unknown[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
		}
	}
}

// Server is an http.Handler producing feed text.
type Server struct {
	mu       sync.Mutex
	profiles map[string]profile
	unknown  map[string]struct{}
	names    []string

	now         func() time.Time
	started     time.Time
	failureRate float64
	latency     time.Duration

	failing  atomic.Bool
	requests atomic.Int64
	logger   logger.Logger
}

// New creates a simulator. Progression starts at construction time.
func New(opts ...Option) *Server {
	s := &Server{
		profiles: make(map[string]profile),
		unknown:  make(map[string]struct{}),
		names:    skills.Names(),
		now:      time.Now,
		logger:   logger.Get().Named("feedsim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s
}

// SetFailing forces every response to 503 until cleared.
func (s *Server) SetFailing(failing bool) { s.failing.Store(failing) }

// Requests returns the number of feed requests served so far.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Feed renders the feed text for player at time at.
func (s *Server) Feed(player string, at time.Time) string {
	key := strings.ToLower(strings.TrimSpace(player))

	s.mu.Lock()
	p, ok := s.profiles[key]
	if !ok {
		p = newProfile(key, len(s.names))
		s.profiles[key] = p
	}
	s.mu.Unlock()

	return render(s.names, p.experienceAt(at.Sub(s.started)))
}

// ServeHTTP answers GET ?player=<name> with feed text.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return
		}
	}

	player := r.URL.Query().Get("player")
	if strings.TrimSpace(player) == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}
	if s.failing.Load() || (s.failureRate > 0 && getRandomFloat() < s.failureRate) {
		s.logger.Debug(ctx, "injected failure", logger.String("player", player))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, ok := s.unknown[strings.ToLower(strings.TrimSpace(player))]; ok {
		http.NotFound(w, r)
		return
	}

	body := s.Feed(player, s.now())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)

	s.logger.Debug(ctx, "served feed",
		logger.String("player", player),
		logger.String("request_id", r.Header.Get("X-Request-ID")))
}

// Run serves the simulator until ctx is cancelled.
func Run(ctx context.Context, cfg *Config, opts ...Option) error {
	if cfg.Verbose {
		_ = logger.SetLevelString("debug")
	}
	opts = append([]Option{
		WithFailureRate(cfg.FailureRate),
		WithLatency(cfg.Latency),
		WithUnknownPlayers(cfg.UnknownPlayers...),
	}, opts...)
	sim := New(opts...)

	mux := http.NewServeMux()
	mux.Handle("/m=hiscore_oldschool/index_lite.ws", sim)
	mux.Handle("/index_lite.ws", sim)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Get().Info(ctx, "feed simulator listening",
			logger.String("addr", cfg.Addr),
			logger.Float64("failure_rate", cfg.FailureRate),
			logger.Duration("latency", cfg.Latency))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
