//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keybridge/internal/claims/models"
	keymodels "keybridge/internal/keys/models"
	keystore "keybridge/internal/keys/store"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
	"keybridge/pkg/testutil/containers"
)

type PostgresClaimSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	keys  *keystore.PostgresStore
	keyID id.KeyID
}

func TestPostgresClaimSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresClaimSuite))
}

func (s *PostgresClaimSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.keys = keystore.NewPostgres(s.pg.DB)
}

func (s *PostgresClaimSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx))

	// Claims reference a key row.
	key := &keymodels.Key{
		ID:    id.NewKeyID(),
		Value: "user@example.com",
		Kind:  keymodels.KindEmail,
		State: keymodels.StateReady,
	}
	s.Require().NoError(s.keys.Create(ctx, key))
	s.keyID = key.ID
}

func (s *PostgresClaimSuite) newClaim(status models.ClaimStatus) *models.Claim {
	now := time.Now()
	return &models.Claim{
		ID:            id.NewClaimID(),
		KeyID:         s.keyID,
		Kind:          models.KindOwnership,
		Status:        status,
		Claimer:       "12345678",
		Custodian:     "87654321",
		Reason:        models.ReasonUserRequested,
		OpenedAt:      now,
		ResolutionDue: now.Add(7 * 24 * time.Hour),
		CompletionDue: now.Add(14 * 24 * time.Hour),
	}
}

func (s *PostgresClaimSuite) TestCreateAndGet() {
	ctx := context.Background()
	claim := s.newClaim(models.StatusOpen)
	s.Require().NoError(s.store.Create(ctx, claim))

	got, err := s.store.Get(ctx, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusOpen, got.Status)
	s.Equal(models.KindOwnership, got.Kind)
	s.WithinDuration(claim.ResolutionDue, got.ResolutionDue, time.Second)
}

func (s *PostgresClaimSuite) TestOneActiveClaimPerKey() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newClaim(models.StatusOpen)))

	err := s.store.Create(ctx, s.newClaim(models.StatusWaiting))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresClaimSuite) TestResolvedClaimFreesTheSlot() {
	ctx := context.Background()
	first := s.newClaim(models.StatusOpen)
	s.Require().NoError(s.store.Create(ctx, first))

	first.Status = models.StatusDenied
	s.Require().NoError(s.store.Update(ctx, first))

	s.Require().NoError(s.store.Create(ctx, s.newClaim(models.StatusOpen)))
}

func (s *PostgresClaimSuite) TestFindActiveByKey() {
	ctx := context.Background()
	claim := s.newClaim(models.StatusWaiting)
	s.Require().NoError(s.store.Create(ctx, claim))

	got, err := s.store.FindActiveByKey(ctx, s.keyID)
	s.Require().NoError(err)
	s.Equal(claim.ID, got.ID)

	_, err = s.store.FindActiveByKey(ctx, id.NewKeyID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresClaimSuite) TestUpdateVersionConflict() {
	ctx := context.Background()
	claim := s.newClaim(models.StatusOpen)
	s.Require().NoError(s.store.Create(ctx, claim))

	stale := *claim
	claim.Status = models.StatusWaiting
	s.Require().NoError(s.store.Update(ctx, claim))

	stale.Status = models.StatusCanceled
	err := s.store.Update(ctx, &stale)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}
