package events

import (
	"context"
	"log/slog"
	"time"
)

// Producer is the bus leg of the outbox; the platform Kafka producer satisfies
// it.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Worker drains the outbox into the bus. Entries are published oldest first,
// keyed by key value so per-key ordering rides partition ordering, and marked
// published only after the bus accepts them. A crash between publish and mark
// re-publishes the entry; consumers deduplicate on the event id in the
// payload.
type Worker struct {
	outbox   Outbox
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewWorker(outbox Outbox, producer Producer, topic string, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: time.Second,
		batch:    100,
		logger:   logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	entries, err := w.outbox.Unpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.producer.Produce(ctx, w.topic, []byte(entry.KeyValue), entry.Payload); err != nil {
			// Leave the entry unpublished; the next tick retries.
			w.logger.WarnContext(ctx, "outbox publish failed",
				"entry_id", entry.ID.String(),
				"event_type", string(entry.EventType),
				"error", err,
			)
			return err
		}
		if err := w.outbox.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
