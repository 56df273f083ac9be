package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"

	"github.com/openfleet/fleettrack/internal/broker/messages"
)

type bridgeOpts struct {
	brokerURL   string
	clientID    string
	topicFilter string
	qos         int
}

type kafkaProducer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// trackerPayload is the wire shape GPS trackers publish on <deviceId>/location.
type trackerPayload struct {
	ID         string     `json:"id"`
	Latitude   *float64   `json:"lat"`
	Longitude  *float64   `json:"lng"`
	Speed      *float64   `json:"speed"`
	Satellites *int       `json:"sat"`
	Heading    *float64   `json:"heading"`
	Timestamp  *time.Time `json:"timestamp"`
}

// bridge relays raw GPS fixes from the MQTT broker onto the kafka topic the
// gateway consumes.
type bridge struct {
	producer   kafkaProducer
	now        func() time.Time
	retryDelay time.Duration
}

func newBridge(producer kafkaProducer) *bridge {
	return &bridge{producer: producer, now: time.Now, retryDelay: time.Second}
}

// handlePayload validates one tracker message and forwards it. Payloads
// without an id or coordinates are dropped: trackers emit partial messages
// while acquiring a satellite lock.
func (b *bridge) handlePayload(ctx context.Context, topic string, payload []byte) {
	var p trackerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Warn("drop malformed tracker payload", "topic", topic, "error", err.Error())
		return
	}
	if p.ID == "" {
		// Fall back to the device segment of the topic ("<deviceId>/location").
		p.ID = deviceFromTopic(topic)
	}
	if p.ID == "" || p.Latitude == nil || p.Longitude == nil {
		slog.Warn("drop incomplete tracker payload", "topic", topic)
		return
	}

	msg := messages.LocationReceived{
		DeviceID:   p.ID,
		Latitude:   *p.Latitude,
		Longitude:  *p.Longitude,
		Speed:      p.Speed,
		Heading:    p.Heading,
		Satellites: p.Satellites,
		Timestamp:  p.Timestamp,
		ReceivedAt: b.now().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if err := b.publishWithRetry(ctx, []byte(p.ID), value); err != nil {
		slog.Error("forward tracker payload", "device_id", p.ID, "error", err.Error())
	}
}

func (b *bridge) publishWithRetry(ctx context.Context, key, value []byte) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * b.retryDelay):
			}
		}
		if lastErr = b.producer.Publish(ctx, key, value); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func deviceFromTopic(topic string) string {
	parts := strings.SplitN(topic, "/", 2)
	if len(parts) == 2 && parts[1] == "location" {
		return parts[0]
	}
	return ""
}

// runBridge connects to the broker and pumps fixes until ctx is canceled.
// autopaho reconnects and re-subscribes on its own; we only log the
// transitions.
func runBridge(ctx context.Context, opts bridgeOpts, b *bridge) error {
	brokerURL, err := url.Parse(opts.brokerURL)
	if err != nil {
		return err
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     60,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		ReconnectBackoff:              autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			slog.Info("mqtt connection up", "broker", opts.brokerURL)
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: opts.topicFilter, QoS: byte(opts.qos)},
				},
			}); err != nil {
				slog.Error("mqtt subscribe failed", "topic", opts.topicFilter, "error", err.Error())
				return
			}
			slog.Info("mqtt subscribed", "topic", opts.topicFilter)
		},
		OnConnectError: func(err error) {
			slog.Warn("mqtt connect failed, retrying", "error", err.Error())
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.clientID,
			Session:  state.NewInMemory(),
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					b.handlePayload(ctx, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				slog.Warn("mqtt client error", "error", err.Error())
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				slog.Warn("mqtt server disconnect", "reason_code", d.ReasonCode)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = cm.Disconnect(shutdownCtx)
	return ctx.Err()
}
