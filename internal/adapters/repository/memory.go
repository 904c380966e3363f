package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/pkg/logger"
	"github.com/okian/skillwatch/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is an in-memory Store.
//
// Readers load an immutable State through an atomic pointer and never block.
// Writers serialize on a mutex, publish a fresh State, then notify subscribers
// outside the lock.
type MemoryStore struct {
	mu    sync.Mutex
	state atomic.Pointer[State]

	subMu  sync.RWMutex
	subs   map[uint64]func(State)
	nextID uint64

	now                   func() time.Time
	metricsUpdateInterval time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store and starts its metrics updater.
// Close must be called to stop it.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		subs:                  make(map[uint64]func(State)),
		now:                   time.Now,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&State{})

	s.wg.Add(1)
	go s.runMetricsUpdater(ctx)
	return s
}

// Load returns the current state.
func (s *MemoryStore) Load(_ context.Context) State {
	return *s.state.Load()
}

// Put stores snap as the latest snapshot and clears the error flag.
func (s *MemoryStore) Put(ctx context.Context, snap skills.Snapshot, at time.Time) {
	next := s.update(func(st *State) {
		st.Snapshot = &snap
		st.FetchedAt = at
		st.Err = nil
		st.FailedAt = time.Time{}
		st.Version++
	})

	metrics.RecordSnapshotStored(at)
	logger.Get().Debug(ctx, "snapshot stored",
		logger.Time("fetched_at", at),
		logger.Int64("version", int64(next.Version)))
}

// Fail records err. The previous snapshot, if any, stays in place.
func (s *MemoryStore) Fail(ctx context.Context, err error, at time.Time) {
	if err == nil {
		return
	}
	next := s.update(func(st *State) {
		st.Err = err
		st.FailedAt = at
	})
	logger.Get().Debug(ctx, "fetch failure recorded",
		logger.Error(err),
		logger.Bool("has_snapshot", next.HasSnapshot()))
}

// SetFetching flags whether a fetch is in flight.
func (s *MemoryStore) SetFetching(_ context.Context, fetching bool) {
	s.update(func(st *State) { st.Fetching = fetching })
}

// Subscribe registers fn for change notifications.
func (s *MemoryStore) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Close stops the metrics updater. It is safe to call more than once.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}

// update copies the current state, applies fn, publishes the result and
// notifies subscribers.
func (s *MemoryStore) update(fn func(*State)) State {
	s.mu.Lock()
	next := *s.state.Load()
	fn(&next)
	s.state.Store(&next)
	s.mu.Unlock()

	s.notify(next)
	return next
}

func (s *MemoryStore) notify(st State) {
	s.subMu.RLock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (s *MemoryStore) runMetricsUpdater(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			st := s.state.Load()
			if st.HasSnapshot() {
				metrics.UpdateSnapshotAge(s.now().Sub(st.FetchedAt))
			}
		}
	}
}
