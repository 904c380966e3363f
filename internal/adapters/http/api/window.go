package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/skillwatch/internal/domain/window"
)

const maxWindowBodyBytes = 4 << 10

// WindowHandler reads and replaces the daily active window.
type WindowHandler struct {
	deps Dependencies
}

// NewWindowHandler creates a new window handler.
func NewWindowHandler(deps Dependencies) *WindowHandler {
	return &WindowHandler{deps: deps}
}

type windowRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	TimeZone string `json:"time_zone"`
}

type windowResponse struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	TimeZone string `json:"time_zone"`
	Wraps    bool   `json:"wraps"`
	Active   bool   `json:"active"`
}

// HandleWindow handles GET and PUT /api/window requests.
func (h *WindowHandler) HandleWindow(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeWindow(w)
	case http.MethodPut:
		h.replace(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
	}
}

func (h *WindowHandler) replace(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxWindowBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if req.TimeZone == "" {
		req.TimeZone = h.deps.Window().Zone()
	}

	win, err := window.Parse(req.Start, req.End, req.TimeZone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_window", err)
		return
	}
	if err := h.deps.SetWindow(r.Context(), win); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeWindow(w)
}

func (h *WindowHandler) writeWindow(w http.ResponseWriter) {
	win := h.deps.Window()
	writeJSON(w, http.StatusOK, windowResponse{
		Start:    window.FormatClock(win.Start),
		End:      window.FormatClock(win.End),
		TimeZone: win.Zone(),
		Wraps:    win.Wraps(),
		Active:   h.deps.Active(),
	})
}
