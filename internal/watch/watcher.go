package watch

import (
	"context"
	"time"

	"github.com/openfleet/fleettrack/internal/geo"
	"github.com/openfleet/fleettrack/internal/models"
)

// DefaultInterval is how often a watcher re-fetches when no interval is given.
const DefaultInterval = 7 * time.Second

// Position is a decoded vehicle fix ready for display.
type Position struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
	Speed     *float64
}

// Sink receives watcher output. UpdatePosition is called with every fetched
// fix, including repeats of the same fix; a successful fetch supersedes any
// earlier ReportError, so sinks should clear a shown error on UpdatePosition.
type Sink interface {
	UpdatePosition(p Position)
	ReportError(err error)
}

// Fetcher loads the latest stored location for a vehicle.
type Fetcher interface {
	LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error)
}

// Watcher polls a single vehicle's latest location on a fixed interval and
// feeds a Sink. Cycles are sequential: a slow fetch delays the next tick
// instead of overlapping with it.
type Watcher struct {
	fetcher   Fetcher
	sink      Sink
	vehicleID string
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func New(fetcher Fetcher, sink Sink, vehicleID string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		fetcher:   fetcher,
		sink:      sink,
		vehicleID: vehicleID,
		interval:  interval,
	}
}

// Start launches the poll loop. The first fetch happens immediately, before
// the first tick. Start must be called at most once.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	w.poll(ctx)

	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	loc, err := w.fetcher.LatestLocation(ctx, w.vehicleID)
	if ctx.Err() != nil {
		// Stopped while the fetch was in flight; drop the result.
		return
	}
	if err != nil {
		w.sink.ReportError(err)
		return
	}
	p, err := geo.ParsePoint(loc.Location)
	if err != nil {
		w.sink.ReportError(err)
		return
	}
	w.sink.UpdatePosition(Position{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: loc.Timestamp,
		Speed:     loc.Speed,
	})
}

// Stop cancels the loop and waits for it to finish. After Stop returns the
// sink sees no further calls.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}
