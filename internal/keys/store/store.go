// Package store persists Key records. It exposes a memory implementation for
// unit tests and a PostgreSQL implementation for production; both enforce the
// same compare-and-swap contract on updates.
package store

import (
	"context"

	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
)

// Store owns persisted Key rows. Updates are optimistic: the caller passes the
// entity as read, and the store rejects the write with sentinel.ErrConflict if
// a concurrent update advanced the row's version in between.
type Store interface {
	// Create inserts a new key. A live key with the same value yields
	// sentinel.ErrConflict.
	Create(ctx context.Context, key *models.Key) error

	// Get loads a key by id. Missing keys yield sentinel.ErrNotFound.
	Get(ctx context.Context, keyID id.KeyID) (*models.Key, error)

	// FindByValue loads the most recently updated key for a value regardless
	// of state.
	FindByValue(ctx context.Context, value string) (*models.Key, error)

	// FindHolderByValue loads the locally custodied row for a value: the key
	// in READY or one of the donor-side CLAIM_* states. During a claim two
	// rows may share a value (holder and claimant), so phase handlers re-read
	// through these role-scoped lookups rather than trusting the event's
	// stale snapshot.
	FindHolderByValue(ctx context.Context, value string) (*models.Key, error)

	// FindClaimantByValue loads the claimant-side row for a value: the key in
	// one of the OWNERSHIP_* or PORTABILITY_* states.
	FindClaimantByValue(ctx context.Context, value string) (*models.Key, error)

	// Update persists state, active claim reference and failure info using the
	// key's version for compare-and-swap. On success the key's Version is
	// advanced in place.
	Update(ctx context.Context, key *models.Key) error
}
