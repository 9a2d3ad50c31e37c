//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybridge/internal/platform/kafka/consumer"
	"keybridge/internal/platform/kafka/producer"
	"keybridge/pkg/testutil/containers"
)

type collector struct {
	mu       sync.Mutex
	messages []consumer.Message
	done     chan struct{}
	want     int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) Handle(_ context.Context, msg *consumer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, *msg)
	if len(c.messages) == c.want {
		close(c.done)
	}
	return nil
}

func (c *collector) collected() []consumer.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]consumer.Message(nil), c.messages...)
}

func TestProduceConsumeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rp := containers.NewRedpandaContainer(t)
	topic := "keys.test." + uuid.NewString()

	prod, err := producer.New(rp.Brokers)
	require.NoError(t, err)
	t.Cleanup(prod.Close)

	// Single partition so delivery order matches produce order.
	require.NoError(t, prod.EnsureTopics(ctx, 1, topic))
	require.NoError(t, prod.EnsureTopics(ctx, 1, topic), "EnsureTopics must be idempotent")

	values := []string{"first", "second", "third"}
	for _, v := range values {
		require.NoError(t, prod.Produce(ctx, topic, []byte("user@example.com"), []byte(v)))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := newCollector(len(values))
	cons, err := consumer.New(consumer.Config{
		Brokers: rp.Brokers,
		Group:   "roundtrip-" + uuid.NewString(),
		Topics:  []string{topic},
	}, handler, logger)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- cons.Run(runCtx) }()

	select {
	case <-handler.done:
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for messages")
	}
	cancel()
	require.ErrorIs(t, <-runDone, context.Canceled)

	got := handler.collected()
	require.Len(t, got, len(values))
	for i, msg := range got {
		assert.Equal(t, topic, msg.Topic)
		assert.Equal(t, "user@example.com", string(msg.Key))
		assert.Equal(t, values[i], string(msg.Value))
		assert.False(t, msg.Timestamp.IsZero())
	}
}
