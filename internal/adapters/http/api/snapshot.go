package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/skillwatch/internal/adapters/repository"
)

// Response headers describing the cached state behind /api/stats.
const (
	HeaderStatus    = "X-Stats-Status"
	HeaderError     = "X-Stats-Error"
	HeaderFetchedAt = "X-Stats-Fetched-At"
	HeaderActive    = "X-Stats-Active"
)

// loadingRetryAfter is the Retry-After hint, in seconds, while no snapshot exists.
const loadingRetryAfter = 5

// SnapshotHandler serves the cached skill snapshot.
type SnapshotHandler struct {
	deps Dependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps Dependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// HandleGetStats handles GET /api/stats requests.
//
// The body is an object keyed by entry name. An error with a prior snapshot
// still answers 200 with the prior data; the state is in the X-Stats headers.
func (h *SnapshotHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	v, err := h.deps.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	st := v.State
	status := st.Status()
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(HeaderStatus, string(status))
	w.Header().Set(HeaderActive, strconv.FormatBool(v.Active))
	if st.Err != nil {
		w.Header().Set(HeaderError, st.Err.Error())
	}

	if !st.HasSnapshot() {
		if status == repository.StatusError {
			writeError(w, http.StatusBadGateway, "upstream_error", st.Err)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
		writeError(w, http.StatusServiceUnavailable, "loading", repository.ErrNoSnapshot)
		return
	}

	w.Header().Set(HeaderFetchedAt, st.FetchedAt.UTC().Format(time.RFC3339))
	writeJSON(w, http.StatusOK, st.Snapshot)
}
