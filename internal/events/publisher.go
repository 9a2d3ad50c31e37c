// Package events publishes outbound domain events through a transactional
// outbox. Handlers append events in the same database transaction that
// persists the key and claim; a worker drains the outbox into the message bus.
// The bus is the source of truth for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"keybridge/internal/claims/models"
)

// Entry is one outbox row awaiting publication.
type Entry struct {
	ID          uuid.UUID
	KeyValue    string
	EventType   models.DomainEventType
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Outbox persists domain events for later publication.
type Outbox interface {
	// Append stores an event. When the context carries a SQL transaction the
	// write joins it, so the event commits atomically with the entity update.
	Append(ctx context.Context, event models.DomainEvent) error

	// Unpublished returns up to limit entries not yet published, oldest first.
	Unpublished(ctx context.Context, limit int) ([]Entry, error)

	// MarkPublished stamps an entry after the bus accepted it. Idempotent.
	MarkPublished(ctx context.Context, entryID uuid.UUID) error
}

// Publisher captures domain events. It is append-only and uses the outbox for
// persistence so tests can swap sinks easily.
type Publisher struct {
	outbox Outbox
}

func NewPublisher(outbox Outbox) *Publisher {
	return &Publisher{outbox: outbox}
}

func (p *Publisher) Emit(ctx context.Context, event models.DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return p.outbox.Append(ctx, event)
}
