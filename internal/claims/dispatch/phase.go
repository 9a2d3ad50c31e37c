package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keybridge/internal/claims/models"
	keymodels "keybridge/internal/keys/models"
	"keybridge/internal/platform/kafka/consumer"
	dErrors "keybridge/pkg/domain-errors"
)

// PhaseFunc is one lifecycle phase of the claim handlers.
type PhaseFunc func(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error)

// PhaseHandler adapts one phase of the claim handlers to a bus topic: it
// decodes the payload, runs the phase, and classifies the outcome.
//
// Malformed payloads and protocol desyncs (not-found, invalid-state) are
// logged loudly and committed: re-delivering them can never succeed and would
// stall the partition. Everything else propagates so the consumer retries.
type PhaseHandler struct {
	kind   models.EventKind
	phase  PhaseFunc
	logger *slog.Logger
	tracer trace.Tracer
}

func NewPhaseHandler(kind models.EventKind, phase PhaseFunc, logger *slog.Logger) *PhaseHandler {
	return &PhaseHandler{
		kind:   kind,
		phase:  phase,
		logger: logger,
		tracer: otel.Tracer("keybridge/dispatch"),
	}
}

func (h *PhaseHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	ctx, span := h.tracer.Start(ctx, "claims.dispatch",
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("keybridge.event", string(h.kind)),
		))
	defer span.End()

	var ev models.LifecycleEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.ErrorContext(ctx, "malformed lifecycle payload, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"status", string(StatusSkipped),
			"error", err,
		)
		return nil
	}
	if ev.Kind == "" {
		ev.Kind = h.kind
	}

	key, err := h.phase(ctx, ev)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeInvalidState) {
			// Protocol desync with the registry: the event can never apply.
			// Surface it for alerting and commit to keep the partition moving.
			h.logger.ErrorContext(ctx, "lifecycle event rejected",
				"event_id", ev.EventID,
				"event", string(ev.Kind),
				"key", ev.KeyValue,
				"status", string(StatusFailed),
				"error", err,
			)
			return nil
		}
		return err
	}

	attrs := []any{
		"event_id", ev.EventID,
		"event", string(ev.Kind),
		"key", ev.KeyValue,
		"status", string(StatusDone),
	}
	if key != nil {
		attrs = append(attrs, "state", string(key.State))
	}
	h.logger.InfoContext(ctx, "lifecycle event processed", attrs...)
	return nil
}
