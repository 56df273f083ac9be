package devicews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/models"
	"github.com/openfleet/fleettrack/internal/registry"
	"github.com/openfleet/fleettrack/internal/services/fleet"
)

// wire is the slice of the websocket connection the session needs; the
// concrete *websocket.Conn satisfies it.
type wire interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// session drives the per-connection protocol state machine. deviceID == ""
// is the unregistered state; a register envelope moves it to registered and
// it stays there until the connection closes.
type session struct {
	svc   FleetService
	reg   *registry.Registry
	rl    RateLimiter
	limit int64

	conn     wire
	deviceID string
}

func newSession(svc FleetService, reg *registry.Registry, rl RateLimiter, limit int64, conn wire) *session {
	return &session{svc: svc, reg: reg, rl: rl, limit: limit, conn: conn}
}

// run reads envelopes until the connection closes. Each message is handled
// fully before the next read, so persistence of one device's stream keeps
// arrival order.
func (s *session) run(ctx context.Context) {
	defer s.teardown()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(ctx, data)
	}
}

func (s *session) handleMessage(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Malformed input is never fatal to the connection.
		slog.Warn("malformed device message", "device_id", s.deviceID, "error", err.Error())
		return
	}

	switch env.Type {
	case TypeRegister:
		s.handleRegister(env)
	case TypeLocation:
		s.handleLocation(ctx, env)
	default:
		slog.Warn("unknown device message type", "type", env.Type, "device_id", s.deviceID)
	}
}

func (s *session) handleRegister(env Envelope) {
	if env.DeviceID == "" {
		s.reply(Reply{Type: TypeError, Message: "deviceId is required"})
		return
	}

	// A connection switching identity releases its old entry first.
	if s.deviceID != "" && s.deviceID != env.DeviceID {
		s.reg.Remove(s.deviceID, s.conn)
	}

	s.deviceID = env.DeviceID
	s.reg.Register(s.deviceID, s.conn)
	s.reply(Reply{Type: TypeRegistered, DeviceID: s.deviceID})
	slog.Info("device registered", "device_id", s.deviceID)
}

func (s *session) handleLocation(ctx context.Context, env Envelope) {
	if s.deviceID == "" {
		s.reply(Reply{Type: TypeError, Message: "Device not registered"})
		return
	}
	if env.Latitude == nil || env.Longitude == nil {
		s.reply(Reply{Type: TypeError, Message: "latitude and longitude are required"})
		return
	}

	if s.rl != nil && s.limit > 0 {
		key := fmt.Sprintf("rl:device:%s:%s", s.deviceID, time.Now().UTC().Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, key, s.limit, 70*time.Second)
		if err == nil && !allowed {
			slog.Warn("device over ingest rate limit", "device_id", s.deviceID, "count", n)
		}
	}

	_, err := s.svc.RecordFix(ctx, s.deviceID, models.LocationFix{
		Latitude:  *env.Latitude,
		Longitude: *env.Longitude,
		Speed:     env.Speed,
		Heading:   env.Heading,
		Timestamp: env.Timestamp,
	})
	switch {
	case err == nil:
		s.reply(Reply{Type: TypeSuccess, Message: "Location updated"})
	case errors.Is(err, fleet.ErrVehicleNotFound):
		slog.Warn("vehicle not found for device", "device_id", s.deviceID)
		s.reply(Reply{Type: TypeError, Message: "Vehicle not found"})
	default:
		slog.Error("record location", "device_id", s.deviceID, "error", err.Error())
		s.reply(Reply{Type: TypeError, Message: "Failed to update location"})
	}
}

// teardown runs once the read loop ends, for any reason. A connection that
// never registered leaves no trace in the registry or the store.
func (s *session) teardown() {
	if s.deviceID == "" {
		return
	}
	s.reg.Remove(s.deviceID, s.conn)

	// The request context is gone by now; the offline flip gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.svc.SetVehicleStatus(ctx, s.deviceID, models.VehicleStatusOffline)
	slog.Info("device disconnected", "device_id", s.deviceID)
}

func (s *session) reply(r Reply) {
	if err := s.conn.WriteJSON(r); err != nil {
		slog.Warn("write device reply", "device_id", s.deviceID, "error", err.Error())
	}
}
