package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/vita/internal/simulate"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		devices  = flag.Int("devices", simulate.DefaultDevices, "Number of synthetic devices")
		interval = flag.Duration("interval", simulate.DefaultInterval, "Interval between readings per device")
		duration = flag.Duration("duration", simulate.DefaultDuration, "Total simulation duration")
		timeout  = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		stressAt = flag.Duration("stress-at", 0, "Inject a high-stress episode this far into the run (0 disables)")
		verbose  = flag.Bool("verbose", false, "Print derived state samples")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simulate.Config{
		BaseURL:  *baseURL,
		Devices:  *devices,
		Interval: *interval,
		Duration: *duration,
		Timeout:  *timeout,
		StressAt: *stressAt,
		Verbose:  *verbose,
	}

	start := time.Now()
	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulation failed after " + time.Since(start).String() + ": " + err.Error() + "\n")
		os.Exit(1)
	}
}
