// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/domain/trigger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest validates and forwards one reading. Invalid readings fail
	// with a stream.ErrInvalidReading kind.
	Ingest(ctx context.Context, r model.BiometricReading) error

	// Device connectivity, called by the device-integration layer.
	ConnectDevice(ctx context.Context, id, name, deviceType string)
	DisconnectDevice(ctx context.Context, id string)

	// State reads. CurrentState is nil while the engine has not
	// derived a state yet.
	CurrentState(ctx context.Context) *model.BiometricsState
	History(ctx context.Context) []model.BiometricsState
	ClearHistory(ctx context.Context)

	// ManualCheck forces one derivation cycle. Fails with
	// engine.ErrStopped when the engine is not running.
	ManualCheck(ctx context.Context) (*model.BiometricsState, error)

	// Trigger CRUD. Mutations take effect at the next cycle boundary.
	PutTrigger(ctx context.Context, t trigger.Trigger)
	DeleteTrigger(ctx context.Context, id string)
	Triggers(ctx context.Context) []trigger.Trigger
}

// Server wires HTTP routes for the wellness API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	readingsHandler *ReadingsHandler
	devicesHandler  *DevicesHandler
	stateHandler    *StateHandler
	triggersHandler *TriggersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		readingsHandler: NewReadingsHandler(deps),
		devicesHandler:  NewDevicesHandler(deps),
		stateHandler:    NewStateHandler(deps),
		triggersHandler: NewTriggersHandler(deps),
	}
}

// Register attaches all HTTP routes to the router.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/readings", MetricsMiddleware(s.readingsHandler.HandlePostReading, "readings")).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{id}/connect", MetricsMiddleware(s.devicesHandler.HandleConnect, "device_connect")).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{id}/disconnect", MetricsMiddleware(s.devicesHandler.HandleDisconnect, "device_disconnect")).Methods(http.MethodPost)
	v1.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleGetState, "state")).Methods(http.MethodGet)
	v1.HandleFunc("/history", MetricsMiddleware(s.stateHandler.HandleGetHistory, "history")).Methods(http.MethodGet)
	v1.HandleFunc("/history", MetricsMiddleware(s.stateHandler.HandleClearHistory, "history")).Methods(http.MethodDelete)
	v1.HandleFunc("/check", MetricsMiddleware(s.stateHandler.HandleManualCheck, "check")).Methods(http.MethodPost)
	v1.HandleFunc("/triggers", MetricsMiddleware(s.triggersHandler.HandleList, "triggers")).Methods(http.MethodGet)
	v1.HandleFunc("/triggers", MetricsMiddleware(s.triggersHandler.HandlePut, "triggers")).Methods(http.MethodPut)
	v1.HandleFunc("/triggers/{id}", MetricsMiddleware(s.triggersHandler.HandleDelete, "triggers")).Methods(http.MethodDelete)
}

// readingRequest mirrors the JSON schema for POST /api/v1/readings.
type readingRequest struct {
	DeviceID     string   `json:"device_id"`
	TS           string   `json:"ts"`
	HeartRate    *float64 `json:"heart_rate,omitempty"`
	HRV          *float64 `json:"hrv,omitempty"`
	Stress       *float64 `json:"stress,omitempty"`
	SleepQuality *float64 `json:"sleep_quality,omitempty"`
}

func (r readingRequest) validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return errors.New("missing device_id")
	}
	if r.TS != "" {
		if _, err := time.Parse(time.RFC3339, r.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	if r.HeartRate == nil && r.HRV == nil && r.Stress == nil && r.SleepQuality == nil {
		return errors.New("reading carries no channels")
	}
	return nil
}

// toModel converts the request into a domain reading. validate must
// have passed.
func (r readingRequest) toModel() model.BiometricReading {
	out := model.BiometricReading{
		DeviceID:     r.DeviceID,
		HeartRate:    r.HeartRate,
		HRV:          r.HRV,
		StressRaw:    r.Stress,
		SleepQuality: r.SleepQuality,
	}
	if r.TS != "" {
		ts, _ := time.Parse(time.RFC3339, r.TS)
		out.Timestamp = ts
	}
	return out
}

type ackResponse struct {
	Status string `json:"status"`
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
