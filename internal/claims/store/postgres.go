package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
	"keybridge/pkg/platform/tx"
)

// PostgresStore persists claims. A partial unique index on (key_id) for active
// statuses backs the one-active-claim invariant; see migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const uniqueViolation = "23505"

const claimColumns = `id, key_id, kind, status, claimer, custodian, reason,
	opened_at, resolution_due, completion_due, version, updated_at`

func (s *PostgresStore) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (id, key_id, kind, status, claimer, custodian, reason,
			opened_at, resolution_due, completion_due, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, now())
		RETURNING version, updated_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(claim.ID), uuid.UUID(claim.KeyID), string(claim.Kind), string(claim.Status),
		claim.Claimer.String(), claim.Custodian.String(), string(claim.Reason),
		claim.OpenedAt, claim.ResolutionDue, claim.CompletionDue,
	).Scan(&claim.Version, &claim.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("key %s already has an active claim: %w", claim.KeyID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	return s.scanOne(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, uuid.UUID(claimID))
}

func (s *PostgresStore) FindActiveByKey(ctx context.Context, keyID id.KeyID) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE key_id = $1 AND status NOT IN ('COMPLETED', 'CANCELED', 'DENIED', 'CLOSED')`
	return s.scanOne(ctx, query, uuid.UUID(keyID))
}

func (s *PostgresStore) Update(ctx context.Context, claim *models.Claim) error {
	query := `
		UPDATE claims
		SET status = $1, resolution_due = $2, completion_due = $3,
		    version = version + 1, updated_at = now()
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		string(claim.Status), claim.ResolutionDue, claim.CompletionDue,
		uuid.UUID(claim.ID), claim.Version,
	).Scan(&claim.Version, &claim.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.Get(ctx, claim.ID); errors.Is(getErr, sentinel.ErrNotFound) {
				return fmt.Errorf("claim %s: %w", claim.ID, sentinel.ErrNotFound)
			}
			return fmt.Errorf("claim %s version %d: %w", claim.ID, claim.Version, sentinel.ErrConflict)
		}
		return fmt.Errorf("update claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*models.Claim, error) {
	row := s.execer(ctx).QueryRowContext(ctx, query, arg)

	var (
		claim                models.Claim
		claimUUID, keyUUID   uuid.UUID
		kind, status, reason string
		claimer, custodian   string
	)
	err := row.Scan(&claimUUID, &keyUUID, &kind, &status, &claimer, &custodian, &reason,
		&claim.OpenedAt, &claim.ResolutionDue, &claim.CompletionDue, &claim.Version, &claim.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("claim: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	claim.ID = id.ClaimID(claimUUID)
	claim.KeyID = id.KeyID(keyUUID)
	claim.Kind = models.ClaimKind(kind)
	claim.Status = models.ClaimStatus(status)
	claim.Claimer = id.ParticipantID(claimer)
	claim.Custodian = id.ParticipantID(custodian)
	claim.Reason = models.ClaimReason(reason)
	return &claim, nil
}
