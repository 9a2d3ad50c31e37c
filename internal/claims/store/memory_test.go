package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
)

func newClaim(keyID id.KeyID, status models.ClaimStatus) *models.Claim {
	return &models.Claim{
		ID:        id.NewClaimID(),
		KeyID:     keyID,
		Kind:      models.KindOwnership,
		Status:    status,
		Claimer:   "12345678",
		Custodian: "87654321",
		Reason:    models.ReasonUserRequested,
	}
}

func TestMemoryOneActiveClaimPerKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	keyID := id.NewKeyID()

	require.NoError(t, s.Create(ctx, newClaim(keyID, models.StatusOpen)))

	err := s.Create(ctx, newClaim(keyID, models.StatusWaiting))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// A resolved claim on the same key does not block a new episode.
	s2 := NewMemory()
	require.NoError(t, s2.Create(ctx, newClaim(keyID, models.StatusCompleted)))
	require.NoError(t, s2.Create(ctx, newClaim(keyID, models.StatusOpen)))
}

func TestMemoryFindActiveByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	keyID := id.NewKeyID()

	resolved := newClaim(keyID, models.StatusDenied)
	require.NoError(t, s.Create(ctx, resolved))
	active := newClaim(keyID, models.StatusWaiting)
	require.NoError(t, s.Create(ctx, active))

	got, err := s.FindActiveByKey(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = s.FindActiveByKey(ctx, id.NewKeyID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryUpdateVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	claim := newClaim(id.NewKeyID(), models.StatusOpen)
	require.NoError(t, s.Create(ctx, claim))

	stale := *claim
	claim.Status = models.StatusWaiting
	require.NoError(t, s.Update(ctx, claim))

	stale.Status = models.StatusCanceled
	err := s.Update(ctx, &stale)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := s.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
}

func TestMemoryGetUnknownClaim(t *testing.T) {
	s := NewMemory()
	_, err := s.Get(context.Background(), id.NewClaimID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
