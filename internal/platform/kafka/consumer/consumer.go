// Package consumer wraps a franz-go consumer group behind a small handler
// interface so feature packages never touch Kafka records directly.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed bus message, decoupled from the Kafka record type.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message to completion. Returning nil commits the
// message; returning an error leaves it uncommitted for re-delivery.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config carries the consumer group wiring.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer runs a consumer group over the configured topics. Offsets are
// committed per record only after the handler succeeds, so processing is
// at-least-once; handlers must be idempotent. Partitioning by key value gives
// in-order delivery per key.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var failed bool
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				// Stop committing at the first failure so the partition
				// replays from here; anything already handled was committed.
				failed = true
				c.logger.WarnContext(ctx, "message handling failed, will redeliver",
					"topic", record.Topic,
					"key", string(record.Key),
					"error", err,
				)
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				failed = true
				c.logger.ErrorContext(ctx, "offset commit failed",
					"topic", record.Topic,
					"error", err,
				)
			}
		})
		c.client.AllowRebalance()
	}
}
