// Package events publishes lifecycle events to Kafka. Publishing is best
// effort; callers log failures and move on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Event types emitted by the service.
const (
	EventCheckinDelivered = "checkin.delivered"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// Envelope is the wire format of a lifecycle event.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
	Payload   any       `json:"payload"`
}

// Publisher publishes lifecycle events to a single topic
type Publisher struct {
	writer *kafka.Writer
	topic  string
	logger ectologger.Logger
}

// NewPublisher creates a Kafka-backed publisher
func NewPublisher(cfg Config, logger ectologger.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{writer: writer, topic: cfg.Topic, logger: logger}, nil
}

// Publish serializes the payload into an envelope and writes it to the topic.
// The event type doubles as the partition key so events for the same kind of
// transition stay ordered.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	envelope := Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TraceID:   tracing.GetTraceID(ctx),
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(eventType),
		Value: data,
		Time:  envelope.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.RecordKafkaPublish(p.topic, "success")
	return nil
}

// Close closes the underlying writer
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}
	p.logger.Info("Kafka publisher closed")
	return nil
}
