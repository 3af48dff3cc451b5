package api

import (
	"errors"
	"net/http"

	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/engine"
)

// StateHandler serves derived state, history and manual derivation.
type StateHandler struct {
	deps Dependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps Dependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// HandleGetState handles GET /api/v1/state requests. Responds 404
// while no reading has been accepted yet.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_state"

	st := h.deps.CurrentState(r.Context())
	if st == nil {
		writeError(w, http.StatusNotFound, "no_state", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetHistory handles GET /api/v1/history requests. The slice is
// ordered oldest first.
func (h *StateHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	hist := h.deps.History(r.Context())
	if hist == nil {
		hist = []model.BiometricsState{}
	}
	writeJSON(w, http.StatusOK, hist)
}

// HandleClearHistory handles DELETE /api/v1/history requests.
func (h *StateHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	h.deps.ClearHistory(r.Context())
	writeJSON(w, http.StatusOK, ackResponse{Status: "cleared"})
}

// HandleManualCheck handles POST /api/v1/check requests, forcing one
// derivation cycle outside the cadence.
func (h *StateHandler) HandleManualCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.manual_check"

	st, err := h.deps.ManualCheck(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrStopped) {
			writeError(w, http.StatusConflict, "engine_stopped", WrapKind(op, ErrStopped, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no_state", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
