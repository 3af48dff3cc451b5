package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/domain/trigger"
)

// TriggersHandler handles intervention trigger CRUD.
type TriggersHandler struct {
	deps Dependencies
}

// NewTriggersHandler creates a new triggers handler.
func NewTriggersHandler(deps Dependencies) *TriggersHandler {
	return &TriggersHandler{deps: deps}
}

// triggerRequest mirrors the JSON schema for PUT /api/v1/triggers.
// Triggers registered over HTTP carry a declarative rule instead of an
// arbitrary condition function.
type triggerRequest struct {
	ID         string        `json:"id"`
	Priority   int           `json:"priority"`
	Enabled    *bool         `json:"enabled,omitempty"`
	CooldownMS int64         `json:"cooldown_ms"`
	Level      string        `json:"level"`
	Rule       *trigger.Rule `json:"rule"`
}

// triggerResponse is the read projection of a registered trigger.
type triggerResponse struct {
	ID         string        `json:"id"`
	Priority   int           `json:"priority"`
	Enabled    bool          `json:"enabled"`
	CooldownMS int64         `json:"cooldown_ms"`
	Level      string        `json:"level"`
	Rule       *trigger.Rule `json:"rule,omitempty"`
}

// HandleList handles GET /api/v1/triggers requests, ordered by
// evaluation priority.
func (h *TriggersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ts := h.deps.Triggers(r.Context())
	out := make([]triggerResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, triggerResponse{
			ID:         t.ID,
			Priority:   t.Priority,
			Enabled:    t.Enabled,
			CooldownMS: t.Cooldown.Milliseconds(),
			Level:      string(t.Level),
			Rule:       t.Rule,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePut handles PUT /api/v1/triggers requests. Registering an
// existing id replaces the trigger and resets its streak state; the
// cooldown clock is preserved by the registry.
func (h *TriggersHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_trigger"

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	t, err := req.toTrigger()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_trigger", WrapKind(op, ErrBadRequest, err))
		return
	}

	h.deps.PutTrigger(r.Context(), t)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleDelete handles DELETE /api/v1/triggers/{id} requests. Deleting
// an unknown id is a no-op.
func (h *TriggersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_trigger"

	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	h.deps.DeleteTrigger(r.Context(), id)
	writeJSON(w, http.StatusOK, ackResponse{Status: "deleted"})
}

func (req triggerRequest) toTrigger() (trigger.Trigger, error) {
	if strings.TrimSpace(req.ID) == "" {
		return trigger.Trigger{}, errNoID
	}
	level := model.InterventionLevel(req.Level)
	if !model.ValidInterventionLevel(level) {
		return trigger.Trigger{}, errBadLevel
	}
	if req.CooldownMS < 0 {
		return trigger.Trigger{}, errBadCooldown
	}
	if req.Rule == nil {
		return trigger.Trigger{}, errNoRule
	}
	cond, err := trigger.Compile(*req.Rule)
	if err != nil {
		return trigger.Trigger{}, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return trigger.Trigger{
		ID:        req.ID,
		Priority:  req.Priority,
		Enabled:   enabled,
		Cooldown:  time.Duration(req.CooldownMS) * time.Millisecond,
		Level:     level,
		Rule:      req.Rule,
		Condition: cond,
	}, nil
}
