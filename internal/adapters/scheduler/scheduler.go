// Package scheduler decides when the upstream feed is fetched.
//
// Inside the daily active window the feed is refreshed on a fixed cadence and
// on demand; outside it no request is made and cached data is served as is.
// At most one fetch is in flight at any time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/okian/skillwatch/internal/adapters/repository"
	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/internal/domain/window"
	"github.com/okian/skillwatch/pkg/logger"
	"github.com/okian/skillwatch/pkg/metrics"
)

// Defaults.
const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultCheckInterval   = 30 * time.Second
	DefaultFetchTimeout    = 10 * time.Second

	fetchKey = "stats"
)

// Trigger sources, used as metric labels.
const (
	SourceTick       = "tick"
	SourceTransition = "transition"
	SourceRead       = "read"
	SourceWake       = "wake"
	SourceWait       = "wait"
)

// FetchFunc retrieves a fresh snapshot.
type FetchFunc func(ctx context.Context) (skills.Snapshot, error)

// Scheduler runs the Active/Inactive state machine and the fetch cadence.
type Scheduler struct {
	fetch FetchFunc
	store repository.Store

	refreshInterval time.Duration
	checkInterval   time.Duration
	fetchTimeout    time.Duration
	now             func() time.Time
	logger          logger.Logger

	mu          sync.Mutex
	win         window.Window
	active      bool
	started     bool
	stopped     bool
	lastCheck   time.Time
	runCtx      context.Context
	cancel      context.CancelFunc
	boundaryIDs []cron.EntryID

	cron  *cron.Cron
	group singleflight.Group

	inflight  atomic.Bool
	fetches   atomic.Int64
	failures  atomic.Int64
	coalesced atomic.Int64
	skipped   atomic.Int64

	kick     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a scheduler. It starts inactive; call Start to evaluate the
// window and begin polling.
func New(fetch FetchFunc, store repository.Store, opts ...Option) (*Scheduler, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Scheduler{
		fetch:           fetch,
		store:           store,
		refreshInterval: DefaultRefreshInterval,
		checkInterval:   DefaultCheckInterval,
		fetchTimeout:    DefaultFetchTimeout,
		now:             time.Now,
		logger:          logger.Get().Named("scheduler"),
		runCtx:          context.Background(),
		cron:            cron.New(),
		kick:            make(chan struct{}, 1),
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	if w, err := window.Default(); err == nil {
		s.win = w
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start evaluates the window immediately, registers the periodic check and
// the boundary entries, and starts the fetch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Schedule(cron.Every(s.checkInterval), cron.FuncJob(func() { s.Evaluate() }))
	if err := s.scheduleBoundaries(); err != nil {
		s.cancel()
		return err
	}

	go s.runFetchLoop()
	s.cron.Start()

	active := s.Evaluate()
	s.logger.Info(ctx, "scheduler started",
		logger.String("window", s.Window().String()),
		logger.Bool("active", active),
		logger.Duration("refresh_interval", s.refreshInterval),
		logger.Duration("check_interval", s.checkInterval))
	return nil
}

// Shutdown stops the cadence and the fetch loop. A fetch that is in flight is
// cancelled through the run context. A stopped scheduler cannot be restarted.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	close(s.stopChan)

	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
	select {
	case <-cronDone.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Evaluate re-checks window membership and applies a transition if the state
// changed. Entering Active triggers an immediate refresh. Before Start and
// after Shutdown it changes nothing and reports the last state.
func (s *Scheduler) Evaluate() bool {
	now := s.now()

	s.mu.Lock()
	if !s.started || s.stopped {
		active := s.active
		s.mu.Unlock()
		return active
	}
	want := s.win.Contains(now)
	changed := want != s.active
	s.active = want
	s.lastCheck = now
	ctx := s.runCtx
	s.mu.Unlock()

	metrics.UpdateWindowActive(want)
	if !changed {
		return want
	}

	state := "inactive"
	if want {
		state = "active"
	}
	metrics.RecordWindowTransition(state)
	s.logger.Info(ctx, "window transition", logger.String("state", state), logger.Time("at", now))

	select {
	case s.kick <- struct{}{}:
	default:
	}
	if want {
		s.trigger(SourceTransition)
	}
	return want
}

// Active reports the current state.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Window returns the effective window.
func (s *Scheduler) Window() window.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.win
}

// SetWindow replaces the window, moves the boundary entries and re-evaluates
// at once.
func (s *Scheduler) SetWindow(ctx context.Context, w window.Window) error {
	s.mu.Lock()
	s.win = w
	running := s.started && !s.stopped
	s.mu.Unlock()

	if running {
		if err := s.scheduleBoundaries(); err != nil {
			return err
		}
	}
	active := s.Evaluate()
	s.logger.Info(ctx, "window replaced", logger.String("window", w.String()), logger.Bool("active", active))
	return nil
}

// Read returns the cached state without blocking. While active it also
// starts a background revalidation.
func (s *Scheduler) Read(ctx context.Context) repository.State {
	st := s.store.Load(ctx)
	if s.Active() {
		s.trigger(SourceRead)
	}
	return st
}

// Wake is the reconnect/visibility signal. It starts a refresh only while
// active and reports whether it did.
func (s *Scheduler) Wake(_ context.Context) bool {
	return s.trigger(SourceWake)
}

// Refresh starts or joins a fetch and waits for it. It reports false without
// fetching while inactive or after Shutdown.
func (s *Scheduler) Refresh(ctx context.Context) (bool, error) {
	if !s.accepting() {
		metrics.RecordRefreshIgnored()
		return false, nil
	}
	metrics.RecordRefreshTrigger(SourceWait)

	select {
	case res := <-s.startFetch():
		return true, res.Err
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Stats returns scheduler diagnostics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"active":           s.active,
		"window":           s.win.String(),
		"last_check":       s.lastCheck,
		"refresh_interval": s.refreshInterval.String(),
		"check_interval":   s.checkInterval.String(),
		"in_flight":        s.inflight.Load(),
		"fetches":          s.fetches.Load(),
		"failures":         s.failures.Load(),
		"coalesced":        s.coalesced.Load(),
		"skipped":          s.skipped.Load(),
	}
}

// accepting reports whether a fetch may start: running and active.
func (s *Scheduler) accepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped && s.active
}

func (s *Scheduler) trigger(source string) bool {
	if !s.accepting() {
		metrics.RecordRefreshIgnored()
		return false
	}
	metrics.RecordRefreshTrigger(source)
	s.startFetch()
	return true
}

// startFetch joins the in-flight fetch or starts a new one.
func (s *Scheduler) startFetch() <-chan singleflight.Result {
	if s.inflight.Load() {
		s.coalesced.Add(1)
		metrics.RecordFetchCoalesced()
	}
	return s.group.DoChan(fetchKey, s.doFetch)
}

func (s *Scheduler) doFetch() (any, error) {
	s.inflight.Store(true)
	defer s.inflight.Store(false)

	s.mu.Lock()
	base := s.runCtx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, s.fetchTimeout)
	defer cancel()

	s.store.SetFetching(ctx, true)
	defer s.store.SetFetching(ctx, false)

	start := time.Now()
	snap, err := s.fetch(ctx)
	latency := float64(time.Since(start).Milliseconds())

	if errors.Is(err, ErrSkipped) {
		s.skipped.Add(1)
		metrics.RecordFetch(metrics.ResultSkipped, latency)
		s.logger.Debug(ctx, "fetch skipped", logger.Error(err))
		return nil, err
	}
	s.fetches.Add(1)
	if err != nil {
		s.failures.Add(1)
		result := resultLabel(err)
		metrics.RecordFetch(result, latency)
		metrics.RecordErrorByComponent("scheduler", result)
		metrics.RecordErrorLatency("scheduler", result, latency)
		s.store.Fail(ctx, err, s.now())
		s.logger.Warn(ctx, "fetch failed, keeping previous snapshot", logger.Error(err))
		return nil, err
	}

	metrics.RecordFetch(metrics.ResultSuccess, latency)
	s.store.Put(ctx, snap, s.now())
	s.logger.Debug(ctx, "fetch completed", logger.Float64("latency_ms", latency))
	return snap, nil
}

// runFetchLoop owns the refresh ticker. The ticker only exists while active.
func (s *Scheduler) runFetchLoop() {
	defer close(s.done)

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.kick:
			if s.Active() {
				if ticker == nil {
					ticker = time.NewTicker(s.refreshInterval)
				} else {
					ticker.Reset(s.refreshInterval)
				}
				tickC = ticker.C
			} else {
				stopTicker()
			}
		case <-tickC:
			s.trigger(SourceTick)
		}
	}
}

func (s *Scheduler) scheduleBoundaries() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.boundaryIDs {
		s.cron.Remove(id)
	}
	s.boundaryIDs = s.boundaryIDs[:0]

	for _, spec := range s.win.Boundaries() {
		id, err := s.cron.AddFunc(spec, func() { s.Evaluate() })
		if err != nil {
			return fmt.Errorf("schedule window boundary %q: %w", spec, err)
		}
		s.boundaryIDs = append(s.boundaryIDs, id)
	}
	return nil
}

func resultLabel(err error) string {
	if errors.Is(err, feed.ErrDecode) {
		return metrics.ResultDecodeError
	}
	return metrics.ResultTransportError
}
