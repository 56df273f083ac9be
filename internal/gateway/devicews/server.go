// Package devicews is the WebSocket ingestion endpoint for GPS trackers: a
// register handshake binds the connection to a device identifier, then
// location envelopes stream in until either side drops the connection.
package devicews

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openfleet/fleettrack/internal/models"
	"github.com/openfleet/fleettrack/internal/registry"
)

type FleetService interface {
	RecordFix(ctx context.Context, deviceID string, fix models.LocationFix) (*models.VehicleLocation, error)
	SetVehicleStatus(ctx context.Context, deviceID, status string)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Server struct {
	svc      FleetService
	reg      *registry.Registry
	rl       RateLimiter
	limit    int64
	upgrader websocket.Upgrader
}

func NewServer(svc FleetService, reg *registry.Registry) *Server {
	return &Server{
		svc: svc,
		reg: reg,
		upgrader: websocket.Upgrader{
			// Trackers carry no browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// WithRateLimit enables the warn-only per-device envelope budget.
func (s *Server) WithRateLimit(rl RateLimiter, perMinute int64) *Server {
	s.rl = rl
	s.limit = perMinute
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "remote", r.RemoteAddr, "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	newSession(s.svc, s.reg, s.rl, s.limit, conn).run(r.Context())
}
