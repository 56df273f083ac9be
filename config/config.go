package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Mqtt       MqttConfig       `yaml:"mqtt"`
	FleetTrack FleetTrackConfig `yaml:"fleettrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	LocationReceivedTopicName string `yaml:"location_received_topic_name"`
	LocationUpdatedTopicName  string `yaml:"location_updated_topic_name"`
}

type MqttConfig struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	// TopicFilter covers every device's location segment, e.g. "+/location".
	TopicFilter string `yaml:"topic_filter"`
	QoS         int    `yaml:"qos"`
}

type FleetTrackConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	LatestLocationTTLSeconds int `yaml:"latest_location_ttl_seconds"`

	// Per-device envelope budget on the WebSocket gateway. Zero disables the guard.
	IngestRateLimitPerMinute int `yaml:"ingest_rate_limit_per_minute"`

	WatchPollIntervalSeconds int `yaml:"watch_poll_interval_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
