package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/openfleet/fleettrack/internal/api/fleetapi"
	"github.com/openfleet/fleettrack/internal/broker/messages"
	"github.com/openfleet/fleettrack/internal/gateway/devicews"
	"github.com/openfleet/fleettrack/internal/services/fleet"
)

type gatewayOpts struct {
	httpAddr      string
	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

// runGateway serves the device WebSocket endpoint and the JSON API on one
// listener, and drains bridge fixes from kafka until ctx is canceled.
func runGateway(ctx context.Context, opts gatewayOpts, svc *fleet.Service, ws *devicews.Server, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Handle("/ws", ws)
	r.Mount("/", fleetapi.New(svc).Routes())

	srv := &http.Server{Handler: r}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := consumer.Consume(gctx, func(_ []byte, value []byte) error {
			return applyBridgeFix(gctx, svc, value)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// applyBridgeFix feeds one location.received message into the service.
// Malformed payloads and unknown devices are dropped so a bad message cannot
// wedge the consumer group.
func applyBridgeFix(ctx context.Context, svc *fleet.Service, value []byte) error {
	var m messages.LocationReceived
	if err := json.Unmarshal(value, &m); err != nil {
		slog.Warn("drop malformed location message", "error", err.Error())
		return nil
	}
	if err := svc.ApplyBridgeFix(ctx, m); err != nil {
		if errors.Is(err, fleet.ErrVehicleNotFound) {
			slog.Warn("location message for unknown device", "device_id", m.DeviceID)
			return nil
		}
		return err
	}
	return nil
}
