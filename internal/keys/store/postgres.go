package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
	"keybridge/pkg/platform/tx"
)

// PostgresStore persists keys in the keys table. Updates compare-and-swap on
// the version column so concurrent handlers cannot silently overwrite each
// other's transitions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const uniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, key *models.Key) error {
	query := `
		INSERT INTO keys (id, value, kind, owner, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, now(), now())
		RETURNING version, created_at, updated_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(key.ID), key.Value, string(key.Kind), key.Owner, string(key.State),
	).Scan(&key.Version, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("key value %q: %w", key.Value, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.scanOne(ctx, `SELECT `+keyColumns+` FROM keys WHERE id = $1`, uuid.UUID(keyID))
}

func (s *PostgresStore) FindByValue(ctx context.Context, value string) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM keys
		WHERE lower(value) = lower($1)
		ORDER BY updated_at DESC LIMIT 1`
	return s.scanOne(ctx, query, value)
}

func (s *PostgresStore) FindHolderByValue(ctx context.Context, value string) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM keys
		WHERE lower(value) = lower($1)
		  AND state IN ('READY', 'CLAIM_PENDING', 'CLAIM_CLOSING', 'CLAIM_CLOSED', 'CLAIM_DENIED', 'CLAIM_NOT_CONFIRMED')
		ORDER BY updated_at DESC LIMIT 1`
	return s.scanOne(ctx, query, value)
}

func (s *PostgresStore) FindClaimantByValue(ctx context.Context, value string) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM keys
		WHERE lower(value) = lower($1)
		  AND (state LIKE 'OWNERSHIP\_%' OR state LIKE 'PORTABILITY\_%')
		ORDER BY updated_at DESC LIMIT 1`
	return s.scanOne(ctx, query, value)
}

func (s *PostgresStore) Update(ctx context.Context, key *models.Key) error {
	query := `
		UPDATE keys
		SET state = $1, active_claim_id = $2, failed_code = $3, failed_message = $4,
		    version = version + 1, updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at
	`
	var activeClaim any
	if key.HasActiveClaim() {
		activeClaim = uuid.UUID(*key.ActiveClaimID)
	}
	var failedCode, failedMsg any
	if key.Failed != nil {
		failedCode = key.Failed.Code
		failedMsg = key.Failed.Message
	}
	err := s.execer(ctx).QueryRowContext(ctx, query,
		string(key.State), activeClaim, failedCode, failedMsg,
		uuid.UUID(key.ID), key.Version,
	).Scan(&key.Version, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing row from a lost race.
			if _, getErr := s.Get(ctx, key.ID); errors.Is(getErr, sentinel.ErrNotFound) {
				return fmt.Errorf("key %s: %w", key.ID, sentinel.ErrNotFound)
			}
			return fmt.Errorf("key %s version %d: %w", key.ID, key.Version, sentinel.ErrConflict)
		}
		return fmt.Errorf("update key: %w", err)
	}
	return nil
}

const keyColumns = `id, value, kind, owner, state, active_claim_id, failed_code, failed_message, version, created_at, updated_at`

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*models.Key, error) {
	row := s.execer(ctx).QueryRowContext(ctx, query, arg)

	var (
		key         models.Key
		keyUUID     uuid.UUID
		activeClaim uuid.NullUUID
		failedCode  sql.NullString
		failedMsg   sql.NullString
		kind, state string
	)
	err := row.Scan(&keyUUID, &key.Value, &kind, &key.Owner, &state,
		&activeClaim, &failedCode, &failedMsg, &key.Version, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("key: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan key: %w", err)
	}
	key.ID = id.KeyID(keyUUID)
	key.Kind = models.KeyKind(kind)
	key.State = models.KeyState(state)
	if activeClaim.Valid {
		claimID := id.ClaimID(activeClaim.UUID)
		key.ActiveClaimID = &claimID
	}
	if failedCode.Valid || failedMsg.Valid {
		key.Failed = &models.Failure{Code: failedCode.String, Message: failedMsg.String}
	}
	return &key, nil
}
