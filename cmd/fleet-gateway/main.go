package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfleet/fleettrack/config"
	"github.com/openfleet/fleettrack/internal/broker/kafka"
	"github.com/openfleet/fleettrack/internal/cache/rediscache"
	"github.com/openfleet/fleettrack/internal/gateway/devicews"
	"github.com/openfleet/fleettrack/internal/registry"
	"github.com/openfleet/fleettrack/internal/services/fleet"
	"github.com/openfleet/fleettrack/internal/storage/pgfleet"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.FleetTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.FleetTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "fleet-gateway"
	}
	receivedTopic := cfg.Kafka.LocationReceivedTopicName
	if receivedTopic == "" {
		receivedTopic = "location.received"
	}
	updatedTopic := cfg.Kafka.LocationUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "location.updated"
	}
	latestTTL := time.Duration(cfg.FleetTrack.LatestLocationTTLSeconds) * time.Second
	if latestTTL <= 0 {
		latestTTL = 5 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers, updatedTopic)
	consumer := kafka.NewConsumer(brokers, receivedTopic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	svc := fleet.New(st, rc, producer, latestTTL)

	ws := devicews.NewServer(svc, registry.New())
	if perMinute := cfg.FleetTrack.IngestRateLimitPerMinute; perMinute > 0 {
		ws = ws.WithRateLimit(rediscache.NewRateLimiter(redisAddr), int64(perMinute))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runGateway(ctx, gatewayOpts{
		httpAddr:      httpAddr,
		topic:         receivedTopic,
		consumerGroup: consumerGroup,
	}, svc, ws, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgfleet.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfleet.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
