package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// reading mirrors the POST /api/v1/readings schema.
type reading struct {
	DeviceID     string   `json:"device_id"`
	TS           string   `json:"ts"`
	HeartRate    *float64 `json:"heart_rate,omitempty"`
	HRV          *float64 `json:"hrv,omitempty"`
	Stress       *float64 `json:"stress,omitempty"`
	SleepQuality *float64 `json:"sleep_quality,omitempty"`
}

// stateView is the subset of the derived state the simulator reports.
type stateView struct {
	StressIndex       float64 `json:"stress_index"`
	WellnessScore     float64 `json:"wellness_score"`
	StressTrend       string  `json:"stress_trend"`
	WellnessTrend     string  `json:"wellness_trend"`
	InterventionLevel string  `json:"intervention_level"`
	ShouldIntervene   bool    `json:"should_intervene"`
}

// Stats accumulates simulation counters.
type Stats struct {
	Sent     atomic.Int64
	Rejected atomic.Int64
	Failed   atomic.Int64
}

type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *client) postJSON(ctx context.Context, path string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *client) getState(ctx context.Context) (*stateView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/state", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("state request returned %d", resp.StatusCode)
	}
	var st stateView
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// Run executes the simulation until the configured duration elapses or
// the context is cancelled.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	cfg.applyDefaults()

	c := newClient(cfg.BaseURL, cfg.Timeout)
	devices := newDevices(cfg.Devices)
	stats := &Stats{}

	// Register devices up front so connectivity shows in the state.
	for _, d := range devices {
		body := map[string]string{"name": d.name, "type": d.kind}
		if _, err := c.postJSON(ctx, "/api/v1/devices/"+d.id+"/connect", body); err != nil {
			return stats, fmt.Errorf("connect device %s: %w", d.id, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	start := time.Now()

	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Add(1)
		go func(d *device) {
			defer wg.Done()
			ticker := time.NewTicker(cfg.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					elapsed := time.Since(start)
					if cfg.StressAt > 0 && d == devices[0] {
						d.stressed = elapsed >= cfg.StressAt
					}
					code, err := c.postJSON(runCtx, "/api/v1/readings", d.sample(elapsed))
					switch {
					case err != nil:
						stats.Failed.Add(1)
					case code >= 400:
						stats.Rejected.Add(1)
					default:
						stats.Sent.Add(1)
					}
				}
			}
		}(d)
	}

	// Sample the derived state once a second while readings flow.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				st, err := c.getState(runCtx)
				if err != nil || st == nil || !cfg.Verbose {
					continue
				}
				fmt.Printf("t=%s stress=%.1f (%s) wellness=%.1f (%s) intervention=%s\n",
					time.Since(start).Truncate(time.Second),
					st.StressIndex, st.StressTrend,
					st.WellnessScore, st.WellnessTrend,
					st.InterventionLevel)
			}
		}
	}()

	wg.Wait()

	// Disconnect so the service sees a clean session end.
	for _, d := range devices {
		_, _ = c.postJSON(ctx, "/api/v1/devices/"+d.id+"/disconnect", nil)
	}

	fmt.Printf("simulation done: sent=%d rejected=%d failed=%d\n",
		stats.Sent.Load(), stats.Rejected.Load(), stats.Failed.Load())
	return stats, nil
}
