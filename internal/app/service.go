// Package service wires the feed client, the snapshot cache and the refresh
// scheduler, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/skillwatch/internal/adapters/hiscore"
	"github.com/okian/skillwatch/internal/adapters/repository"
	"github.com/okian/skillwatch/internal/adapters/scheduler"
	"github.com/okian/skillwatch/internal/config"
	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/internal/domain/window"
	"github.com/okian/skillwatch/internal/domain/xpcurve"
	"github.com/okian/skillwatch/pkg/logger"
	"github.com/okian/skillwatch/pkg/metrics"
)

const stopTimeout = 5 * time.Second

// ErrNotStarted is returned by queries made before Start.
var ErrNotStarted = errors.New("service not started")

// ErrSkipped is returned by Refresh when the rate limit kept the fetch from
// reaching the upstream. The cached state is unchanged.
var ErrSkipped = scheduler.ErrSkipped

// View is the cached state as seen by one consumer read.
type View struct {
	State repository.State
	// Active reports whether the scheduler is polling.
	Active bool
	// Stale is true while active, where data is revalidated on every read,
	// and false while inactive, where cached data never goes stale.
	Stale bool
}

// BoardEntry is one entry of the display board.
type BoardEntry struct {
	Name       string  `json:"name"`
	Rank       int     `json:"rank"`
	Level      int     `json:"level"`
	Experience int64   `json:"experience"`
	Progress   float64 `json:"progress"`
	CurveLevel int     `json:"curve_level"`
}

// Board is the display-ready rendition of a View.
type Board struct {
	Player    string            `json:"player"`
	Status    repository.Status `json:"status"`
	Active    bool              `json:"active"`
	Stale     bool              `json:"stale"`
	Fetching  bool              `json:"fetching"`
	FetchedAt *time.Time        `json:"fetched_at,omitempty"`
	Error     string            `json:"error,omitempty"`
	Entries   []BoardEntry      `json:"entries"`
}

// Service implements the API dependencies for the tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       *repository.MemoryStore
	sched       *scheduler.Scheduler
	curve       *xpcurve.Curve
	unsubscribe func()

	// Configuration
	player          string
	feedURL         string
	win             window.Window
	refreshInterval time.Duration
	checkInterval   time.Duration
	fetchTimeout    time.Duration
	upstreamRPS     float64
	upstreamBurst   int
	userAgent       string
	fetch           scheduler.FetchFunc
	now             func() time.Time

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPlayer sets the tracked player.
func WithPlayer(player string) Option {
	return func(s *Service) {
		s.player = player
	}
}

// WithFeedURL sets the scoreboard endpoint.
func WithFeedURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.feedURL = url
		}
	}
}

// WithWindow sets the daily active window.
func WithWindow(w window.Window) Option {
	return func(s *Service) {
		s.win = w
	}
}

// WithRefreshInterval sets the fetch cadence while active.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithCheckInterval sets the window re-evaluation cadence.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithFetchTimeout bounds one upstream request.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithUpstreamLimit bounds the request rate against the scoreboard.
func WithUpstreamLimit(rps float64, burst int) Option {
	return func(s *Service) {
		s.upstreamRPS = rps
		s.upstreamBurst = burst
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) Option {
	return func(s *Service) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithFetcher replaces the scoreboard client, e.g. with a stub in tests.
func WithFetcher(fetch scheduler.FetchFunc) Option {
	return func(s *Service) {
		if fetch != nil {
			s.fetch = fetch
		}
	}
}

// WithClock overrides the time source used for window evaluation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FromConfig maps a loaded Config onto service options.
func FromConfig(cfg *config.Config) ([]Option, error) {
	w, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithPlayer(cfg.Player),
		WithFeedURL(cfg.FeedURL),
		WithWindow(w),
		WithRefreshInterval(cfg.RefreshInterval),
		WithCheckInterval(cfg.CheckInterval),
		WithFetchTimeout(cfg.FetchTimeout),
		WithUpstreamLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		WithUserAgent(cfg.UserAgent),
	}, nil
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		curve:           xpcurve.New(),
		feedURL:         feed.DefaultURL,
		refreshInterval: scheduler.DefaultRefreshInterval,
		checkInterval:   scheduler.DefaultCheckInterval,
		fetchTimeout:    scheduler.DefaultFetchTimeout,
		now:             time.Now,
		logger:          nil, // Will be replaced when service starts
	}
	if w, err := window.Default(); err == nil {
		s.win = w
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start validates the configuration and starts the scheduler. Without a
// player it fails with config.ErrMissingPlayer and nothing is started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	cfg := config.Config{Player: s.player}
	if err := cfg.RequirePlayer(); err != nil {
		s.logger.Error(ctx, "cannot start tracker", logger.Error(err))
		return err
	}

	s.logger.Info(ctx, "starting skill tracker...", logger.String("player", s.player))

	fetch := s.fetch
	if fetch == nil {
		client, err := hiscore.NewClient(s.feedURL,
			hiscore.WithRateLimit(s.upstreamRPS, s.upstreamBurst),
			hiscore.WithUserAgent(s.userAgent),
		)
		if err != nil {
			return err
		}
		player := s.player
		fetch = func(ctx context.Context) (skills.Snapshot, error) {
			snap, err := client.Fetch(ctx, player)
			if errors.Is(err, hiscore.ErrThrottled) {
				return snap, fmt.Errorf("%w: %w", scheduler.ErrSkipped, err)
			}
			return snap, err
		}
	}

	store := repository.NewMemoryStore(ctx, repository.WithClock(s.now))
	sched, err := scheduler.New(fetch, store,
		scheduler.WithWindow(s.win),
		scheduler.WithRefreshInterval(s.refreshInterval),
		scheduler.WithCheckInterval(s.checkInterval),
		scheduler.WithFetchTimeout(s.fetchTimeout),
		scheduler.WithClock(s.now),
	)
	if err != nil {
		store.Close()
		return err
	}

	var lastVersion uint64
	unsubscribe := store.Subscribe(func(st repository.State) {
		if !st.HasSnapshot() || st.Version == lastVersion {
			return
		}
		lastVersion = st.Version
		st.Snapshot.Each(func(name string, r skills.Record) {
			metrics.UpdateSkill(name, r.Rank, r.Level, r.Experience)
		})
	})

	if err := sched.Start(ctx); err != nil {
		unsubscribe()
		store.Close()
		return err
	}

	s.store = store
	s.sched = sched
	s.unsubscribe = unsubscribe
	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "skill tracker started",
		logger.String("player", s.player),
		logger.String("window", s.win.String()),
		logger.Bool("active", sched.Active()),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping skill tracker...")

	if err := s.sched.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "scheduler shutdown", logger.Error(err))
	}
	s.unsubscribe()
	s.store.Close()

	s.started = false
	s.logger.Info(ctx, "skill tracker stopped")
}

func (s *Service) components() (*scheduler.Scheduler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.sched, nil
}

// Stats returns the cached state without blocking. While active the read also
// starts a background revalidation.
func (s *Service) Stats(ctx context.Context) (View, error) {
	sched, err := s.components()
	if err != nil {
		return View{}, err
	}
	st := sched.Read(ctx)
	active := sched.Active()
	return View{State: st, Active: active, Stale: active}, nil
}

// Board returns the cached state with curve-derived level info per entry.
func (s *Service) Board(ctx context.Context) (Board, error) {
	v, err := s.Stats(ctx)
	if err != nil {
		return Board{}, err
	}
	return s.board(v), nil
}

func (s *Service) board(v View) Board {
	b := Board{
		Player:   s.player,
		Status:   v.State.Status(),
		Active:   v.Active,
		Stale:    v.Stale,
		Fetching: v.State.Fetching,
		Entries:  []BoardEntry{},
	}
	if v.State.Err != nil {
		b.Error = v.State.Err.Error()
	}
	if !v.State.HasSnapshot() {
		return b
	}

	at := v.State.FetchedAt
	b.FetchedAt = &at
	b.Entries = make([]BoardEntry, 0, v.State.Snapshot.Len())
	v.State.Snapshot.Each(func(name string, r skills.Record) {
		info := s.curve.LevelInfo(r.Experience)
		b.Entries = append(b.Entries, BoardEntry{
			Name:       name,
			Rank:       r.Rank,
			Level:      r.Level,
			Experience: r.Experience,
			Progress:   info.Progress,
			CurveLevel: info.Level,
		})
	})
	return b
}

// Wake signals a reconnect or regained visibility. It refreshes only while
// active and reports whether it did.
func (s *Service) Wake(ctx context.Context) (bool, error) {
	sched, err := s.components()
	if err != nil {
		return false, err
	}
	return sched.Wake(ctx), nil
}

// Refresh is Wake followed by waiting for the fetch to finish.
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	sched, err := s.components()
	if err != nil {
		return false, err
	}
	return sched.Refresh(ctx)
}

// Window returns the effective active window.
func (s *Service) Window() window.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sched != nil && s.started {
		return s.sched.Window()
	}
	return s.win
}

// SetWindow replaces the active window and re-evaluates immediately.
func (s *Service) SetWindow(ctx context.Context, w window.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.win = w
	if !s.started {
		return nil
	}
	// Held across the call so Stop cannot shut the scheduler down midway.
	return s.sched.SetWindow(ctx, w)
}

// Active reports whether the scheduler is currently polling.
func (s *Service) Active() bool {
	sched, err := s.components()
	if err != nil {
		return false
	}
	return sched.Active()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"player":  s.player,
		"window":  s.win.String(),
	}

	if s.started {
		st := s.store.Load(context.Background())
		stats["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
		stats["status"] = st.Status()
		stats["version"] = st.Version
		stats["fetching"] = st.Fetching
		if st.HasSnapshot() {
			stats["fetched_at"] = st.FetchedAt
			age := s.now().Sub(st.FetchedAt)
			stats["snapshot_age"] = age.Round(time.Second).String()
			metrics.UpdateSnapshotAge(age)
		}
		if st.Err != nil {
			stats["last_error"] = st.Err.Error()
			stats["failed_at"] = st.FailedAt
		}
		stats["scheduler"] = s.sched.Stats()
		stats["window"] = s.sched.Window().String()
	}

	return stats
}
