package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openfleet/fleettrack/internal/watch"
)

type watchOpts struct {
	serverURL string
	vehicleID string
	interval  time.Duration
}

// consoleSink renders watcher output the way a tracking screen does: the
// latest position as it arrives, and a transient error banner that the next
// successful fix clears.
type consoleSink struct {
	mu      sync.Mutex
	failing bool
}

func (s *consoleSink) UpdatePosition(p watch.Position) {
	s.mu.Lock()
	cleared := s.failing
	s.failing = false
	s.mu.Unlock()

	if cleared {
		slog.Info("location feed recovered")
	}
	args := []any{"lat", p.Latitude, "lng", p.Longitude, "timestamp", p.Timestamp.Format(time.RFC3339)}
	if p.Speed != nil {
		args = append(args, "speed", *p.Speed)
	}
	slog.Info("vehicle position", args...)
}

func (s *consoleSink) ReportError(err error) {
	s.mu.Lock()
	s.failing = true
	s.mu.Unlock()
	slog.Warn("location fetch failed", "error", err.Error())
}

func (s *consoleSink) showingError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing
}

// runWatch polls the gateway's read API for one vehicle until ctx is
// canceled.
func runWatch(ctx context.Context, opts watchOpts, sink watch.Sink) {
	w := watch.New(watch.NewHTTPFetcher(opts.serverURL), sink, opts.vehicleID, opts.interval)
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
}
