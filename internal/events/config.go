package events

import (
	"errors"
	"os"
	"strings"
)

// ErrNotConfigured is returned by LoadConfig when KAFKA_BROKERS is unset.
var ErrNotConfigured = errors.New("KAFKA_BROKERS environment variable is not set")

// Config holds Kafka configuration
type Config struct {
	Brokers           string
	Topic             string
	EnableIdempotence bool
	Acks              string
}

// LoadConfig loads Kafka configuration from environment variables
func LoadConfig() (*Config, error) {
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		return nil, ErrNotConfigured
	}

	topic := os.Getenv("KAFKA_TOPIC_CELL_EVENTS")
	if topic == "" {
		topic = "cell-events"
	}

	acks := os.Getenv("KAFKA_ACKS")
	if acks == "" {
		acks = "all"
	}

	return &Config{
		Brokers:           brokers,
		Topic:             topic,
		EnableIdempotence: acks == "all",
		Acks:              acks,
	}, nil
}

// BrokersList returns brokers as a slice
func (c *Config) BrokersList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
