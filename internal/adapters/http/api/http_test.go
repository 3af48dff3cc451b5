package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/vita/internal/adapters/http/api"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/internal/domain/trigger"
	"github.com/okian/vita/internal/engine"
	"github.com/okian/vita/internal/stream"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps implements api.Dependencies and api.StatsProvider for tests.
type mockDeps struct {
	ingested     []model.BiometricReading
	ingestErr    error
	connected    []string
	disconnected []string

	state    *model.BiometricsState
	history  []model.BiometricsState
	cleared  bool
	checkErr error

	triggers []trigger.Trigger
	deleted  []string
}

func (m *mockDeps) Ingest(_ context.Context, r model.BiometricReading) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.ingested = append(m.ingested, r)
	return nil
}

func (m *mockDeps) ConnectDevice(_ context.Context, id, _, _ string) {
	m.connected = append(m.connected, id)
}

func (m *mockDeps) DisconnectDevice(_ context.Context, id string) {
	m.disconnected = append(m.disconnected, id)
}

func (m *mockDeps) CurrentState(context.Context) *model.BiometricsState { return m.state }

func (m *mockDeps) History(context.Context) []model.BiometricsState { return m.history }

func (m *mockDeps) ClearHistory(context.Context) { m.cleared = true }

func (m *mockDeps) ManualCheck(context.Context) (*model.BiometricsState, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.state, nil
}

func (m *mockDeps) PutTrigger(_ context.Context, t trigger.Trigger) {
	m.triggers = append(m.triggers, t)
}

func (m *mockDeps) DeleteTrigger(_ context.Context, id string) {
	m.deleted = append(m.deleted, id)
}

func (m *mockDeps) Triggers(context.Context) []trigger.Trigger { return m.triggers }

func (m *mockDeps) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true}
}

func newTestRouter(deps *mockDeps) *mux.Router {
	r := mux.NewRouter()
	api.NewServer(deps, deps).Register(context.Background(), r)
	return r
}

func doJSON(router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReadingsEndpoint(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{}
		router := newTestRouter(deps)

		Convey("When a valid reading is posted", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{
				"device_id":  "w1",
				"ts":         time.Now().UTC().Format(time.RFC3339),
				"heart_rate": 72.0,
			})

			Convey("Then it is accepted and forwarded", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.ingested, ShouldHaveLength, 1)
				So(deps.ingested[0].DeviceID, ShouldEqual, "w1")
				So(*deps.ingested[0].HeartRate, ShouldEqual, 72.0)
			})
		})

		Convey("When the reading omits its timestamp", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{
				"device_id": "w1",
				"stress":    40.0,
			})

			Convey("Then it is still accepted with a zero timestamp", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.ingested[0].Timestamp.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When the payload is malformed", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", bytes.NewBufferString("{nope"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the device id is missing", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{"heart_rate": 72.0})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the reading carries no channels", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{"device_id": "w1"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the timestamp is not RFC3339", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{
				"device_id": "w1", "ts": "yesterday", "heart_rate": 72.0,
			})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the pipeline rejects the reading", func() {
			deps.ingestErr = stream.ErrInvalidReading
			rec := doJSON(router, http.MethodPost, "/api/v1/readings", map[string]any{
				"device_id": "w1", "heart_rate": 500.0,
			})

			Convey("Then the client sees a 400 with a code", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				var resp map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["code"], ShouldEqual, "invalid_reading")
			})
		})
	})
}

func TestStateEndpoints(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{}
		router := newTestRouter(deps)

		Convey("When no state has been derived yet", func() {
			rec := doJSON(router, http.MethodGet, "/api/v1/state", nil)

			Convey("Then the state endpoint answers 404 no_state", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				var resp map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["code"], ShouldEqual, "no_state")
			})
		})

		Convey("When a state exists", func() {
			deps.state = &model.BiometricsState{
				StressIndex:       55,
				WellnessScore:     62,
				StressTrend:       model.StressRising,
				WellnessTrend:     model.WellnessDeclining,
				InterventionLevel: model.InterventionMild,
				ShouldIntervene:   true,
				Timestamp:         time.Now().UTC(),
			}
			rec := doJSON(router, http.MethodGet, "/api/v1/state", nil)

			Convey("Then the state is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var st model.BiometricsState
				So(json.Unmarshal(rec.Body.Bytes(), &st), ShouldBeNil)
				So(st.StressIndex, ShouldEqual, 55.0)
				So(st.InterventionLevel, ShouldEqual, model.InterventionMild)
			})
		})

		Convey("When history is requested", func() {
			deps.history = []model.BiometricsState{{StressIndex: 10}, {StressIndex: 20}}
			rec := doJSON(router, http.MethodGet, "/api/v1/history", nil)

			Convey("Then the full slice comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var hist []model.BiometricsState
				So(json.Unmarshal(rec.Body.Bytes(), &hist), ShouldBeNil)
				So(hist, ShouldHaveLength, 2)
			})
		})

		Convey("When history is empty", func() {
			rec := doJSON(router, http.MethodGet, "/api/v1/history", nil)

			Convey("Then an empty array is returned, not null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldStartWith, "[]")
			})
		})

		Convey("When history is deleted", func() {
			rec := doJSON(router, http.MethodDelete, "/api/v1/history", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.cleared, ShouldBeTrue)
		})

		Convey("When a manual check runs against a stopped engine", func() {
			deps.checkErr = engine.ErrStopped
			rec := doJSON(router, http.MethodPost, "/api/v1/check", nil)

			Convey("Then the conflict is reported", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				var resp map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["code"], ShouldEqual, "engine_stopped")
			})
		})

		Convey("When a manual check succeeds", func() {
			deps.state = &model.BiometricsState{StressIndex: 40}
			rec := doJSON(router, http.MethodPost, "/api/v1/check", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestDeviceEndpoints(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{}
		router := newTestRouter(deps)

		Convey("When a device connects with metadata", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/devices/ring-1/connect", map[string]string{
				"name": "Ring", "type": "ring",
			})

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.connected, ShouldResemble, []string{"ring-1"})
		})

		Convey("When a device connects with no body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/ring-1/connect", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.connected, ShouldResemble, []string{"ring-1"})
		})

		Convey("When a device disconnects", func() {
			rec := doJSON(router, http.MethodPost, "/api/v1/devices/ring-1/disconnect", nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.disconnected, ShouldResemble, []string{"ring-1"})
		})
	})
}

func TestTriggerEndpoints(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{}
		router := newTestRouter(deps)

		validBody := map[string]any{
			"id":          "high-stress",
			"priority":    10,
			"cooldown_ms": 60000,
			"level":       "moderate",
			"rule": map[string]any{
				"metric":     "stress_index",
				"op":         "ge",
				"threshold":  70,
				"min_streak": 2,
			},
		}

		Convey("When a valid trigger is put", func() {
			rec := doJSON(router, http.MethodPut, "/api/v1/triggers", validBody)

			Convey("Then it is accepted with a compiled condition", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.triggers, ShouldHaveLength, 1)
				tr := deps.triggers[0]
				So(tr.ID, ShouldEqual, "high-stress")
				So(tr.Enabled, ShouldBeTrue)
				So(tr.Cooldown, ShouldEqual, time.Minute)
				So(tr.Level, ShouldEqual, model.InterventionModerate)
				So(tr.Condition, ShouldNotBeNil)

				Convey("And the condition honors the streak", func() {
					s := model.BiometricsState{StressIndex: 80}
					So(tr.Condition(s), ShouldBeFalse)
					So(tr.Condition(s), ShouldBeTrue)
				})
			})
		})

		Convey("When the level is unknown", func() {
			bad := map[string]any{}
			for k, v := range validBody {
				bad[k] = v
			}
			bad["level"] = "panic"
			rec := doJSON(router, http.MethodPut, "/api/v1/triggers", bad)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the rule is missing", func() {
			bad := map[string]any{"id": "x", "level": "mild"}
			rec := doJSON(router, http.MethodPut, "/api/v1/triggers", bad)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the rule metric is unknown", func() {
			bad := map[string]any{
				"id": "x", "level": "mild",
				"rule": map[string]any{"metric": "mood", "op": "gt", "threshold": 1},
			}
			rec := doJSON(router, http.MethodPut, "/api/v1/triggers", bad)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When triggers are listed", func() {
			doJSON(router, http.MethodPut, "/api/v1/triggers", validBody)
			rec := doJSON(router, http.MethodGet, "/api/v1/triggers", nil)

			Convey("Then the read projection carries the rule", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var list []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &list), ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0]["id"], ShouldEqual, "high-stress")
				So(list[0]["cooldown_ms"], ShouldEqual, 60000.0)
			})
		})

		Convey("When a trigger is deleted", func() {
			rec := doJSON(router, http.MethodDelete, "/api/v1/triggers/high-stress", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.deleted, ShouldResemble, []string{"high-stress"})
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the API router", t, func() {
		router := newTestRouter(&mockDeps{})

		Convey("When stats are requested", func() {
			rec := doJSON(router, http.MethodGet, "/stats", nil)

			Convey("Then the provider's snapshot is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldBeTrue)
			})
		})
	})
}
