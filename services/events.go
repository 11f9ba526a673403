package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventPublisher emits an event for every issued attestation so downstream
// settlement systems (escrow watchers, reconciliation jobs) learn about new
// results without polling the audit store.
type EventPublisher interface {
	PublishAttestation(ctx context.Context, record *AuditRecord) error
	Close() error
}

// NoopPublisher discards all events. The default when no broker is
// configured.
type NoopPublisher struct{}

func (p *NoopPublisher) PublishAttestation(ctx context.Context, record *AuditRecord) error {
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}

// KafkaPublisher writes attestation events to a Kafka topic. Messages are
// keyed by computation hash, so re-submissions of the same documents land in
// the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		log: log,
	}
}

// PublishAttestation writes one audit record to the topic as JSON.
func (p *KafkaPublisher) PublishAttestation(ctx context.Context, record *AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling attestation event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ComputationHash),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("writing attestation event: %w", err)
	}

	p.log.Debug("Published attestation event", "id", record.ID, "topic", p.writer.Topic)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
