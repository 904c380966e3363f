// Package repository holds the cached stats snapshot and its fetch status.
package repository

import (
	"context"
	"time"

	"github.com/okian/skillwatch/internal/domain/skills"
)

// Status is the display state derived from a State.
type Status string

// Display states.
const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// State is an immutable view of the cache slot.
type State struct {
	// Snapshot is nil until the first successful fetch.
	Snapshot  *skills.Snapshot
	FetchedAt time.Time

	// Err is the last fetch failure; cleared by the next successful Put.
	Err      error
	FailedAt time.Time

	Fetching bool
	// Version increments with every stored snapshot.
	Version uint64
}

// HasSnapshot reports whether a snapshot was ever stored.
func (s State) HasSnapshot() bool { return s.Snapshot != nil }

// Status derives loading/error/ready. An error wins over ready so callers can
// show the last good snapshot with an error indicator.
func (s State) Status() Status {
	switch {
	case s.Err != nil:
		return StatusError
	case s.Snapshot == nil:
		return StatusLoading
	default:
		return StatusReady
	}
}

// Store is the single mutable resource shared between the fetch path and readers.
type Store interface {
	// Load returns the current state. It never blocks on a fetch.
	Load(ctx context.Context) State

	// Put replaces the snapshot and clears any previous error.
	Put(ctx context.Context, snap skills.Snapshot, at time.Time)

	// Fail records a fetch error and keeps the previous snapshot.
	Fail(ctx context.Context, err error, at time.Time)

	// SetFetching flags an in-flight fetch.
	SetFetching(ctx context.Context, fetching bool)

	// Subscribe registers fn to be called after every change. The returned
	// function removes the subscription.
	Subscribe(fn func(State)) (cancel func())
}
