package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/mode"
)

// Controller owns the live session.
type Controller interface {
	Open(ctx context.Context, m mode.Mode) (*app.Session, error)
	Stop(reason string) error
	Suspend() (*app.Session, error)
	Resume(ctx context.Context) (*app.Session, error)
	Tap() (bool, error)
	Current() *app.Session
}

// ControlHandler serves session control endpoints.
type ControlHandler struct {
	controller Controller
}

// NewControlHandler creates a ControlHandler driving c.
func NewControlHandler(c Controller) *ControlHandler {
	return &ControlHandler{controller: c}
}

type openSessionRequest struct {
	Mode string `json:"mode"`
}

type commandRequest struct {
	Text string `json:"text"`
}

type statusResponse struct {
	Active  bool        `json:"active"`
	Session *app.Status `json:"session,omitempty"`
}

type tapResponse struct {
	Exit bool `json:"exit"`
}

// Status handles GET /api/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s := h.controller.Current()
	if s == nil {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	st := s.Status()
	writeJSON(w, http.StatusOK, statusResponse{Active: st.State == app.Active.String(), Session: &st})
}

// Session handles POST and DELETE on /api/session.
func (h *ControlHandler) Session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req openSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		m, err := mode.Parse(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid mode")
			return
		}
		h.open(w, r, m)
	case http.MethodDelete:
		if err := h.controller.Stop(app.ReasonStopped); err != nil {
			if errors.Is(err, app.ErrNoSession) {
				writeError(w, http.StatusNotFound, "No active session")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to stop session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Command handles POST /api/command, mapping a spoken phrase to a mode.
func (h *ControlHandler) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	m, err := mode.FromCommand(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown command")
		return
	}
	h.open(w, r, m)
}

// Suspend handles POST /api/session/suspend.
func (h *ControlHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s, err := h.controller.Suspend()
	h.transition(w, "suspend", s, err)
}

// Resume handles POST /api/session/resume.
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s, err := h.controller.Resume(context.WithoutCancel(r.Context()))
	h.transition(w, "resume", s, err)
}

func (h *ControlHandler) transition(w http.ResponseWriter, action string, s *app.Session, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.Status())
	case errors.Is(err, app.ErrNoSession):
		writeError(w, http.StatusNotFound, "No active session")
	case errors.Is(err, app.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Warn("session transition failed", "action", action, "error", err)
		writeError(w, openStatus(err), err.Error())
	}
}

// Tap handles POST /api/tap.
func (h *ControlHandler) Tap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	exit, err := h.controller.Tap()
	if err != nil {
		writeError(w, http.StatusNotFound, "No active session")
		return
	}
	writeJSON(w, http.StatusOK, tapResponse{Exit: exit})
}

func (h *ControlHandler) open(w http.ResponseWriter, r *http.Request, m mode.Mode) {
	// The session outlives the request.
	s, err := h.controller.Open(context.WithoutCancel(r.Context()), m)
	if err != nil {
		log.Warn("failed to open session", "mode", m, "error", err)
		writeError(w, openStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.Status())
}

// openStatus maps a session start failure to an HTTP status.
func openStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, app.ErrDetectorInit), errors.Is(err, app.ErrResourceBinding),
		errors.Is(err, app.ErrControllerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
