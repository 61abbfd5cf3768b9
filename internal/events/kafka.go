package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cellfinder/internal/metrics"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// HeaderEventType carries CellEvent.Type so consumers can filter without decoding.
const HeaderEventType = "event_type"

// KafkaPublisher produces cell events keyed by cell id, so the changes to one
// cell land on one partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates the producer and starts draining its event channel.
func NewKafkaPublisher(config *Config, logger *slog.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     config.Brokers,
		"client.id":                             "cellfinder-api",
		"acks":                                  config.Acks,
		"enable.idempotence":                    config.EnableIdempotence,
		"max.in.flight.requests.per.connection": 5,
		"linger.ms":                             20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	publisher := &KafkaPublisher{
		producer: p,
		topic:    config.Topic,
		logger:   logger.With("component", "cell-events"),
	}
	go publisher.watchDeliveries()

	publisher.logger.Info("Cell event producer ready",
		"brokers", config.BrokersList(),
		"topic", config.Topic,
		"acks", config.Acks)

	return publisher, nil
}

// buildMessage encodes event for topic.
func buildMessage(topic string, event CellEvent) (*kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.CellID),
		Value:          payload,
		Headers:        []kafka.Header{{Key: HeaderEventType, Value: []byte(event.Type)}},
		Timestamp:      event.OccurredAt,
	}, nil
}

// Publish hands event to librdkafka and returns; delivery is reported asynchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event CellEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(msg, nil); err != nil {
		metrics.CellEventsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("failed to enqueue %s for cell %s: %w", event.Type, event.CellID, err)
	}

	p.logger.Debug("Cell event queued", "type", event.Type, "cell_id", event.CellID)
	return nil
}

func (p *KafkaPublisher) watchDeliveries() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				metrics.CellEventsTotal.WithLabelValues("failed").Inc()
				p.logger.Error("Cell event not delivered",
					"cell_id", string(ev.Key),
					"error", ev.TopicPartition.Error)
				continue
			}
			metrics.CellEventsTotal.WithLabelValues("delivered").Inc()
			p.logger.Debug("Cell event delivered",
				"cell_id", string(ev.Key),
				"partition", ev.TopicPartition.Partition,
				"offset", ev.TopicPartition.Offset)
		case kafka.Error:
			p.logger.Warn("Kafka client error", "code", ev.Code(), "error", ev)
		}
	}
}

// Close waits up to 10s for queued events, then releases the producer.
func (p *KafkaPublisher) Close() {
	if left := p.producer.Flush(10_000); left > 0 {
		p.logger.Error("Dropping undelivered cell events", "count", left)
	}
	p.producer.Close()
	p.logger.Info("Cell event producer closed")
}
