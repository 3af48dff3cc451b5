package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// DevicesHandler handles device connectivity requests.
type DevicesHandler struct {
	deps Dependencies
}

// NewDevicesHandler creates a new devices handler.
func NewDevicesHandler(deps Dependencies) *DevicesHandler {
	return &DevicesHandler{deps: deps}
}

type connectRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// HandleConnect handles POST /api/v1/devices/{id}/connect requests.
// The body is optional; when present it may carry a display name and
// device type.
func (h *DevicesHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.device_connect"

	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req connectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	h.deps.ConnectDevice(r.Context(), id, req.Name, req.Type)
	writeJSON(w, http.StatusOK, ackResponse{Status: "connected"})
}

// HandleDisconnect handles POST /api/v1/devices/{id}/disconnect requests.
func (h *DevicesHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.device_disconnect"

	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	h.deps.DisconnectDevice(r.Context(), id)
	writeJSON(w, http.StatusOK, ackResponse{Status: "disconnected"})
}
