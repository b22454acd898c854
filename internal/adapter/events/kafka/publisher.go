package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const eventTypeCommitted = "ledger.transaction.committed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher on a kafka-go Writer.
// Messages are keyed by user ID so one user's events stay in one partition, in commit order.
type Publisher struct {
	writer messageWriter
	log    zerolog.Logger
}

// NewPublisher creates an asynchronous publisher for topic. Delivery failures
// are logged from the writer's completion callback.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
	w.Completion = func(msgs []kafka.Message, err error) {
		if err != nil {
			log.Warn().Err(err).Int("count", len(msgs)).Str("topic", topic).Msg("ledger event delivery failed")
		}
	}

	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Kafka publisher configured")
	return &Publisher{writer: w, log: log}
}

// Publish enqueues one ledger event.
func (p *Publisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NewMessage encodes event as a Kafka message keyed by user ID.
func NewMessage(event domain.LedgerEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding ledger event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypeCommitted)},
		},
	}, nil
}
