package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const maxReconnectAttempts = 5

func main() {
	serverURL := pflag.String("server", "ws://localhost:8080/ws", "gateway WebSocket URL")
	deviceID := pflag.String("device", "", "device id to register (random when empty)")
	interval := pflag.Duration("interval", 5*time.Second, "delay between location updates")
	lat := pflag.Float64("lat", 27.65580, "starting latitude")
	lng := pflag.Float64("lng", 85.33911, "starting longitude")
	pflag.Parse()

	id := *deviceID
	if id == "" {
		id = "SIM_" + uuid.NewString()[:8]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting GPS simulator", "server", *serverURL, "device_id", id)

	sim := newSimulator(id, *lat, *lng, time.Now().UnixNano())
	opts := simOpts{serverURL: *serverURL, interval: *interval}

	attempts := 0
	for {
		started := time.Now()
		err := runSim(ctx, opts, sim)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}

		// A session that survived a while counts as a successful connection.
		if time.Since(started) > time.Minute {
			attempts = 0
		}
		attempts++
		if attempts > maxReconnectAttempts {
			slog.Error("max reconnection attempts reached", "error", err.Error())
			os.Exit(1)
		}
		delay := time.Duration(1<<attempts) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		slog.Warn("connection lost, reconnecting", "attempt", attempts, "delay", delay, "error", err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
