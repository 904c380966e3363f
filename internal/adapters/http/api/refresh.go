package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/skillwatch/internal/app"
	"github.com/okian/skillwatch/pkg/logger"
)

// throttledRetryAfter is sent with 429 answers, in seconds.
const throttledRetryAfter = "5"

// RefreshHandler handles on-demand refresh requests.
type RefreshHandler struct {
	deps Dependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Dependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type refreshResponse struct {
	Triggered bool `json:"triggered"`
	Completed bool `json:"completed,omitempty"`
}

// HandleRefresh handles POST /api/refresh requests.
//
// Without wait it starts a fetch and answers 202. With wait=true it answers
// once the fetch finished. While inactive nothing is fetched and it answers
// 200 with triggered=false.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_wait", ErrBadRequest)
			return
		}
		wait = v
	}

	ctx := r.Context()
	if !wait {
		triggered, err := h.deps.Wake(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !triggered {
			writeJSON(w, http.StatusOK, refreshResponse{})
			return
		}
		writeJSON(w, http.StatusAccepted, refreshResponse{Triggered: true})
		return
	}

	triggered, err := h.deps.Refresh(ctx)
	switch {
	case !triggered && err != nil:
		writeServiceError(w, err)
	case !triggered:
		writeJSON(w, http.StatusOK, refreshResponse{})
	case errors.Is(err, service.ErrSkipped):
		w.Header().Set("Retry-After", throttledRetryAfter)
		writeError(w, http.StatusTooManyRequests, "throttled", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	case err != nil:
		logger.Get().Named("http").Debug(ctx, "refresh failed",
			logger.String("request_id", RequestID(ctx)), logger.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	default:
		writeJSON(w, http.StatusOK, refreshResponse{Triggered: true, Completed: true})
	}
}
