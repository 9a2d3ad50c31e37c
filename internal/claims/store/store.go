// Package store persists Claim records, one row per competing-claim episode.
package store

import (
	"context"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
)

// Store owns persisted Claim rows. Like the key store, updates are optimistic
// on the claim's version.
type Store interface {
	// Create inserts a new claim episode. A second active claim for the same
	// key yields sentinel.ErrConflict, enforcing the one-active-claim
	// invariant at the persistence boundary.
	Create(ctx context.Context, claim *models.Claim) error

	// Get loads a claim by id. Missing claims yield sentinel.ErrNotFound.
	Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)

	// FindActiveByKey returns the single active (non-terminal) claim for a
	// key, or sentinel.ErrNotFound.
	FindActiveByKey(ctx context.Context, keyID id.KeyID) (*models.Claim, error)

	// Update persists status and deadline changes with compare-and-swap on
	// version. On success the claim's Version advances in place.
	Update(ctx context.Context, claim *models.Claim) error
}
