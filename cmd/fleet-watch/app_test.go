package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/internal/watch"
)

func TestConsoleSink_ErrorClearedByNextFix(t *testing.T) {
	s := &consoleSink{}

	s.ReportError(errors.New("gateway unreachable"))
	require.True(t, s.showingError())

	s.UpdatePosition(watch.Position{Latitude: 27.6558, Longitude: 85.33911, Timestamp: time.Now()})
	require.False(t, s.showingError())
}

type recordingSink struct {
	mu        sync.Mutex
	positions []watch.Position
	errs      []error
}

func (s *recordingSink) UpdatePosition(p watch.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, p)
}

func (s *recordingSink) ReportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSink) positionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

func TestRunWatch_PollsGateway(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/vehicle_locations/{vehicleId}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"vehicle_id":"veh-1","location":"(85.33911,27.6558)","timestamp":"2026-03-01T12:00:00Z"}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runWatch(ctx, watchOpts{serverURL: srv.URL, vehicleID: "veh-1", interval: 10 * time.Millisecond}, sink)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.positionCount() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watch to stop")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, 27.6558, sink.positions[0].Latitude)
	require.Equal(t, 85.33911, sink.positions[0].Longitude)
}
