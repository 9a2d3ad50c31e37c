package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"keybridge/internal/claims/models"
)

// MemoryOutbox keeps entries in order in memory. Tests use it both as an
// outbox and as a recorded event sink.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (o *MemoryOutbox) Append(_ context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal domain event: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, Entry{
		ID:        uuid.New(),
		KeyValue:  event.KeyValue,
		EventType: event.Type,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (o *MemoryOutbox) Unpublished(_ context.Context, limit int) ([]Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Entry
	for _, e := range o.entries {
		if e.PublishedAt == nil {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (o *MemoryOutbox) MarkPublished(_ context.Context, entryID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].ID == entryID && o.entries[i].PublishedAt == nil {
			now := time.Now()
			o.entries[i].PublishedAt = &now
		}
	}
	return nil
}

// All returns every appended entry, published or not. Test helper.
func (o *MemoryOutbox) All() []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Entry, len(o.entries))
	copy(out, o.entries)
	return out
}
