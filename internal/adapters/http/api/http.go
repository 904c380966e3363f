// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/skillwatch/internal/app"
	"github.com/okian/skillwatch/internal/domain/window"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Stats returns the cached state without blocking.
	Stats(ctx context.Context) (service.View, error)
	// Board returns the cached state with per-entry level info.
	Board(ctx context.Context) (service.Board, error)

	// Wake starts a refresh while active; Refresh also waits for it.
	Wake(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) (bool, error)

	Active() bool
	Window() window.Window
	SetWindow(ctx context.Context, w window.Window) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	snapshotHandler  *SnapshotHandler
	boardHandler     *BoardHandler
	refreshHandler   *RefreshHandler
	windowHandler    *WindowHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		snapshotHandler:  NewSnapshotHandler(deps),
		boardHandler:     NewBoardHandler(deps),
		refreshHandler:   NewRefreshHandler(deps),
		windowHandler:    NewWindowHandler(deps),
		dashboardHandler: newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/stats", MetricsMiddleware(s.snapshotHandler.HandleGetStats, "api_stats"))
	mux.HandleFunc("/api/board", MetricsMiddleware(s.boardHandler.HandleGetBoard, "api_board"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "api_refresh"))
	mux.HandleFunc("/api/window", MetricsMiddleware(s.windowHandler.HandleWindow, "api_window"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service-level failures that are not about the data.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotStarted) {
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
