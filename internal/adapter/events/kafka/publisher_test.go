package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() domain.LedgerEvent {
	return domain.NewLedgerEvent(&domain.Transaction{
		ID:           12,
		UserID:       uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Type:         domain.TransactionTypeDeposit,
		Amount:       domain.MustParseMoney("10.50"),
		BalanceAfter: domain.MustParseMoney("25.00"),
		CreatedAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	})
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, eventTypeCommitted, string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, float64(12), body["transaction_id"])
	assert.Equal(t, "deposit", body["type"])
	assert.Equal(t, "10.50", body["amount"])
	assert.Equal(t, "25.00", body["balance_after"])
	assert.Equal(t, "2024-05-01T09:30:00Z", body["occurred_at"])
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, log: zerolog.Nop()}

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", string(w.msgs[0].Key))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("broker unreachable")}, log: zerolog.Nop()}

	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "broker unreachable")
}

func TestNewPublisher_WriterConfig(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "ledger.transactions", zerolog.Nop())

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "ledger.transactions", w.Topic)
	assert.True(t, w.Async)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.NotNil(t, w.Completion)
	assert.NoError(t, p.Close())
}
