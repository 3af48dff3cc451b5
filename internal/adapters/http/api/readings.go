package api

import (
	"encoding/json"
	"net/http"
)

// ReadingsHandler handles reading ingestion requests.
type ReadingsHandler struct {
	deps Dependencies
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps Dependencies) *ReadingsHandler {
	return &ReadingsHandler{deps: deps}
}

// HandlePostReading handles POST /api/v1/readings requests.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reading"

	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.Ingest(r.Context(), req.toModel()); err != nil {
		// Ingest only fails on validation (out-of-range or
		// out-of-order); backpressure is absorbed upstream.
		writeError(w, http.StatusBadRequest, "invalid_reading", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
