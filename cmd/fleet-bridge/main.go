package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfleet/fleettrack/config"
	"github.com/openfleet/fleettrack/internal/broker/kafka"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	brokerURL := cfg.Mqtt.BrokerURL
	if brokerURL == "" {
		brokerURL = "mqtt://localhost:1883"
	}
	clientID := cfg.Mqtt.ClientID
	if clientID == "" {
		clientID = "fleet-bridge"
	}
	topicFilter := cfg.Mqtt.TopicFilter
	if topicFilter == "" {
		topicFilter = "+/location"
	}
	topic := cfg.Kafka.LocationReceivedTopicName
	if topic == "" {
		topic = "location.received"
	}

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers, topic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runBridge(ctx, bridgeOpts{
		brokerURL:   brokerURL,
		clientID:    clientID,
		topicFilter: topicFilter,
		qos:         cfg.Mqtt.QoS,
	}, newBridge(producer)); err != nil && err != context.Canceled {
		panic(err)
	}
}
