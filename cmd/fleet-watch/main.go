package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/openfleet/fleettrack/config"
	"github.com/openfleet/fleettrack/internal/watch"
)

func main() {
	vehicleID := pflag.String("vehicle", "", "vehicle id to watch")
	serverURL := pflag.String("server", "http://localhost:8080", "fleet gateway base URL")
	pflag.Parse()

	if *vehicleID == "" {
		fmt.Fprintln(os.Stderr, "--vehicle is required")
		os.Exit(2)
	}

	interval := watch.DefaultInterval
	if cfgPath := os.Getenv("configPath"); cfgPath != "" {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			panic(fmt.Sprintf("failed to parse config: %v", err))
		}
		if s := cfg.FleetTrack.WatchPollIntervalSeconds; s > 0 {
			interval = time.Duration(s) * time.Second
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("watching vehicle", "vehicle_id", *vehicleID, "server", *serverURL, "interval", interval)
	runWatch(ctx, watchOpts{serverURL: *serverURL, vehicleID: *vehicleID, interval: interval}, &consoleSink{})
}
