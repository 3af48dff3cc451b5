package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/vita/internal/adapters/http/api"
	mqttsource "github.com/okian/vita/internal/adapters/mqtt"
	app "github.com/okian/vita/internal/app"
	"github.com/okian/vita/internal/config"
	"github.com/okian/vita/internal/domain/derive"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	deriverOpts := []derive.Option{
		derive.WithSmoothingFactor(cfg.SmoothingFactor),
		derive.WithMaxStepPerCycle(cfg.MaxStepPerCycle),
		derive.WithTrendDeadZone(cfg.TrendDeadZone),
	}
	if w, ok := wellnessWeights(cfg.WellnessWeights); ok {
		deriverOpts = append(deriverOpts, derive.WithWeights(w))
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithQueueSize(cfg.QueueSize),
		app.WithSubscriberBuffer(cfg.SubscriberBuffer),
		app.WithCadence(time.Duration(cfg.CadenceMS)*time.Millisecond),
		app.WithHistoryCapacity(cfg.HistoryCapacity),
		app.WithTrendWindow(cfg.TrendWindow),
		app.WithStaleAfter(time.Duration(cfg.StaleAfterMS)*time.Millisecond),
		app.WithDeriverOptions(deriverOpts...),
		app.WithAutoStart(cfg.AutoStart),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Optional MQTT ingestion bridge.
	if cfg.MQTT.Enabled {
		src, err := mqttsource.New(svc,
			mqttsource.WithBroker(cfg.MQTT.Broker),
			mqttsource.WithClientID(cfg.MQTT.ClientID),
			mqttsource.WithReadingTopic(cfg.MQTT.ReadingTopic),
			mqttsource.WithDeviceTopic(cfg.MQTT.DeviceTopic),
			mqttsource.WithQoS(byte(cfg.MQTT.QoS)),
			mqttsource.WithCredentials(cfg.MQTT.Username, cfg.MQTT.Password),
			mqttsource.WithLogger(log.Named("mqtt")),
		)
		if err != nil {
			os.Stderr.WriteString("failed to create mqtt source: " + err.Error() + "\n")
			return
		}
		if err := src.Connect(ctx); err != nil {
			log.Error(ctx, "mqtt connect failed; continuing without broker", logger.Error(err))
		} else {
			defer src.Close()
		}
	}

	go startServiceMetricsUpdater(ctx, svc)

	// HTTP router and routes.
	router := mux.NewRouter()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// wellnessWeights maps configured component weights onto the deriver's
// weight struct. Missing keys keep their defaults.
func wellnessWeights(m map[string]float64) (derive.Weights, bool) {
	if len(m) == 0 {
		return derive.Weights{}, false
	}
	w := derive.DefaultWeights()
	if v, ok := m["inverse_stress"]; ok {
		w.InverseStress = v
	}
	if v, ok := m["hrv"]; ok {
		w.HRV = v
	}
	if v, ok := m["sleep"]; ok {
		w.Sleep = v
	}
	return w, true
}

// startServiceMetricsUpdater periodically refreshes gauges that are
// cheaper to sample than to track on every operation.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.GetStats(ctx)
			if n, ok := stats["queue_size"].(int); ok {
				metrics.UpdateQueueSize(n)
			}
			if n, ok := stats["subscribers"].(int); ok {
				metrics.UpdateSubscriberCount(n)
			}
			if n, ok := stats["triggers"].(int); ok {
				metrics.UpdateTriggerCount(n)
			}
			if n, ok := stats["connected_devices"].(int); ok {
				metrics.UpdateConnectedDevices(n)
			}
		}
	}
}
