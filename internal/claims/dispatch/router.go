// Package dispatch connects the message bus to the claim phase handlers. The
// router maps topics to handlers and accounts for every message's terminal
// status, so consumption is inspectable from logs and metrics alone.
package dispatch

import (
	"context"
	"log/slog"

	"keybridge/internal/platform/kafka/consumer"
)

// TopicHandler handles messages from a specific topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// MessageStatus is the terminal disposition of one consumed message.
type MessageStatus string

const (
	StatusDone       MessageStatus = "DONE"
	StatusDeadLetter MessageStatus = "DEAD_LETTER"
	StatusFailed     MessageStatus = "FAILED"
	StatusSkipped    MessageStatus = "SKIPPED"
)

// Router dispatches messages to topic-specific handlers.
type Router struct {
	handlers map[string]TopicHandler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		logger:   logger,
	}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Handle routes the message to its topic handler. Messages for unregistered
// topics are committed and skipped so one miswired subscription cannot stall
// the group.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for topic, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"status", string(StatusSkipped),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}
