package main

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/gateway/devicews"
)

type simOpts struct {
	serverURL string
	interval  time.Duration
}

// simulator random-walks a GPS tracker around a starting point. Each step
// moves the position by up to ~100m and rolls a fresh speed and heading.
type simulator struct {
	deviceID string
	rnd      *rand.Rand

	lat     float64
	lng     float64
	speed   float64
	heading float64
}

func newSimulator(deviceID string, lat, lng float64, seed int64) *simulator {
	return &simulator{
		deviceID: deviceID,
		rnd:      rand.New(rand.NewSource(seed)),
		lat:      lat,
		lng:      lng,
	}
}

func (s *simulator) register() devicews.Envelope {
	return devicews.Envelope{Type: devicews.TypeRegister, DeviceID: s.deviceID}
}

func (s *simulator) step() devicews.Envelope {
	s.lat += (s.rnd.Float64() - 0.5) * 0.001
	s.lng += (s.rnd.Float64() - 0.5) * 0.001
	s.speed = s.rnd.Float64() * 60
	s.heading = s.rnd.Float64() * 360

	lat, lng, speed, heading := s.lat, s.lng, s.speed, s.heading
	return devicews.Envelope{
		Type:      devicews.TypeLocation,
		Latitude:  &lat,
		Longitude: &lng,
		Speed:     &speed,
		Heading:   &heading,
	}
}

// runSim connects, registers and streams fixes until ctx is canceled or the
// connection drops.
func runSim(ctx context.Context, opts simOpts, sim *simulator) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, opts.serverURL, nil)
	if err != nil {
		return errors.Wrap(err, "dial gateway")
	}
	defer conn.Close()

	if err := conn.WriteJSON(sim.register()); err != nil {
		return errors.Wrap(err, "send register")
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var ack devicews.Reply
	if err := conn.ReadJSON(&ack); err != nil {
		return errors.Wrap(err, "await registration ack")
	}
	if ack.Type != devicews.TypeRegistered {
		return errors.Errorf("registration rejected: %s", ack.Message)
	}
	_ = conn.SetReadDeadline(time.Time{})
	slog.Info("device registered", "device_id", sim.deviceID)

	// Drain server replies so write errors surface and acks get logged.
	readErr := make(chan error, 1)
	go func() {
		for {
			var reply devicews.Reply
			if err := conn.ReadJSON(&reply); err != nil {
				readErr <- err
				return
			}
			if reply.Type == devicews.TypeError {
				slog.Warn("gateway rejected update", "message", reply.Message)
			}
		}
	}()

	t := time.NewTicker(opts.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case err := <-readErr:
			return errors.Wrap(err, "read reply")
		case <-t.C:
			env := sim.step()
			if err := conn.WriteJSON(env); err != nil {
				return errors.Wrap(err, "send location")
			}
			slog.Info("sent location", "lat", *env.Latitude, "lng", *env.Longitude)
		}
	}
}
