package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"keybridge/internal/claims/models"
)

// BusProducer is the slice of the bus producer the republisher needs.
type BusProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Republisher moves an event onto the dead-letter topic, preserving the key
// value as the partition key so ordering per key survives the detour.
type Republisher struct {
	producer BusProducer
	topic    string
	logger   *slog.Logger
}

func NewRepublisher(producer BusProducer, logger *slog.Logger) *Republisher {
	return &Republisher{
		producer: producer,
		topic:    TopicDeadLetter,
		logger:   logger,
	}
}

func (r *Republisher) Republish(ctx context.Context, ev models.LifecycleEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal dead-letter event: %w", err)
	}
	if err := r.producer.Produce(ctx, r.topic, []byte(ev.KeyValue), payload); err != nil {
		return fmt.Errorf("produce dead-letter event: %w", err)
	}
	r.logger.InfoContext(ctx, "event republished to dead-letter",
		"event_id", ev.EventID,
		"event", string(ev.Kind),
		"key", ev.KeyValue,
		"attempt", ev.Attempt,
		"status", string(StatusDeadLetter),
	)
	return nil
}

// Wire builds the full topic routing for a deployment: one phase handler per
// inbound topic plus the dead-letter retry handler.
func Wire(router *Router, logger *slog.Logger, phases map[string]PhaseFunc) {
	for topic, phase := range phases {
		router.Register(topic, NewPhaseHandler(kindForTopic(topic), phase, logger))
	}
}

func kindForTopic(topic string) models.EventKind {
	switch topic {
	case TopicOpened:
		return models.EventOpened
	case TopicWaiting:
		return models.EventWait
	case TopicConfirming:
		return models.EventConfirm
	case TopicCompleting:
		return models.EventComplete
	case TopicCanceling:
		return models.EventCancelRequested
	case TopicClosing:
		return models.EventClaimClosing
	case TopicDenied:
		return models.EventClaimDenied
	default:
		return ""
	}
}
