package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
)

type produced struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []produced
	failAt   int // 1-based call index that fails; 0 never fails
	calls    int
}

func (p *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failAt != 0 && p.calls == p.failAt {
		return errors.New("broker unreachable")
	}
	p.messages = append(p.messages, produced{topic: topic, key: string(key), value: value})
	return nil
}

func testEvent(value string, eventType models.DomainEventType) models.DomainEvent {
	return models.DomainEvent{
		Type:     eventType,
		KeyID:    id.NewKeyID(),
		KeyValue: value,
		KeyKind:  "email",
		State:    "READY",
	}
}

func TestWorkerDrainPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	require.NoError(t, outbox.Append(ctx, testEvent("a@example.com", models.DomainKeyRegistered)))
	require.NoError(t, outbox.Append(ctx, testEvent("b@example.com", models.DomainKeyReady)))

	producer := &fakeProducer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(outbox, producer, "keys.events", logger)

	require.NoError(t, w.drain(ctx))

	require.Len(t, producer.messages, 2)
	assert.Equal(t, "keys.events", producer.messages[0].topic)
	assert.Equal(t, "a@example.com", producer.messages[0].key, "messages are keyed by key value")
	assert.Equal(t, "b@example.com", producer.messages[1].key)

	unpublished, err := outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestWorkerDrainStopsOnProducerError(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	require.NoError(t, outbox.Append(ctx, testEvent("a@example.com", models.DomainKeyRegistered)))
	require.NoError(t, outbox.Append(ctx, testEvent("b@example.com", models.DomainKeyReady)))

	producer := &fakeProducer{failAt: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(outbox, producer, "keys.events", logger)

	require.Error(t, w.drain(ctx))

	// Nothing marked published; the next tick retries from the top.
	unpublished, err := outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unpublished, 2)

	producer.failAt = 0
	require.NoError(t, w.drain(ctx))
	unpublished, err = outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestWorkerDrainIsEmptySafe(t *testing.T) {
	outbox := NewMemoryOutbox()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(outbox, &fakeProducer{}, "keys.events", logger)
	require.NoError(t, w.drain(context.Background()))
}
