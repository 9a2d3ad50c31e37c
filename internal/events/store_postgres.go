package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keybridge/internal/claims/models"
	"keybridge/pkg/platform/tx"
)

// PostgresOutbox implements Outbox on the outbox table.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (o *PostgresOutbox) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return o.db
}

func (o *PostgresOutbox) Append(ctx context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal domain event: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, 'key', $2, $3, $4, now())
	`
	_, err = o.execer(ctx).ExecContext(ctx, query,
		uuid.New(), event.KeyValue, string(event.Type), payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) Unpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := o.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			eventType string
		)
		if err := rows.Scan(&e.ID, &e.KeyValue, &eventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.EventType = models.DomainEventType(eventType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (o *PostgresOutbox) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	query := `UPDATE outbox SET published_at = $1 WHERE id = $2 AND published_at IS NULL`
	if _, err := o.db.ExecContext(ctx, query, time.Now(), entryID); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
