//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
	"keybridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background()))
}

func (s *PostgresStoreSuite) newKey(value string, state models.KeyState) *models.Key {
	return &models.Key{
		ID:    id.NewKeyID(),
		Value: value,
		Kind:  models.KindEmail,
		Owner: "alice",
		State: state,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	key := s.newKey("user@example.com", models.StatePending)
	s.Require().NoError(s.store.Create(ctx, key))
	s.Equal(int64(1), key.Version)

	got, err := s.store.Get(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(key.Value, got.Value)
	s.Equal(models.StatePending, got.State)
}

func (s *PostgresStoreSuite) TestRegisteredUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newKey("user@example.com", models.StateReady)))

	err := s.store.Create(ctx, s.newKey("User@Example.com", models.StatePending))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The claimant branch may share the value with the registered row.
	s.Require().NoError(s.store.Create(ctx, s.newKey("user@example.com", models.StateOwnershipWaiting)))
}

func (s *PostgresStoreSuite) TestClaimantUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newKey("user@example.com", models.StateOwnershipPending)))

	err := s.store.Create(ctx, s.newKey("user@example.com", models.StatePortabilityPending))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestRoleScopedLookups() {
	ctx := context.Background()
	holder := s.newKey("user@example.com", models.StateClaimPending)
	claimant := s.newKey("user@example.com", models.StateOwnershipWaiting)
	s.Require().NoError(s.store.Create(ctx, holder))
	s.Require().NoError(s.store.Create(ctx, claimant))

	got, err := s.store.FindHolderByValue(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(holder.ID, got.ID)

	got, err = s.store.FindClaimantByValue(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(claimant.ID, got.ID)

	_, err = s.store.FindHolderByValue(ctx, "nobody@example.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateVersionConflict() {
	ctx := context.Background()
	key := s.newKey("user@example.com", models.StateReady)
	s.Require().NoError(s.store.Create(ctx, key))

	stale := *key
	key.State = models.StateClaimPending
	s.Require().NoError(s.store.Update(ctx, key))
	s.Equal(int64(2), key.Version)

	stale.State = models.StateDeleting
	err := s.store.Update(ctx, &stale)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFailureRoundTrip() {
	ctx := context.Background()
	key := s.newKey("user@example.com", models.StatePending)
	s.Require().NoError(s.store.Create(ctx, key))

	key.State = models.StateAddFailed
	key.Failed = &models.Failure{Code: "ENTRY_LIMIT_EXCEEDED", Message: "limit reached"}
	s.Require().NoError(s.store.Update(ctx, key))

	got, err := s.store.Get(ctx, key.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Failed)
	s.Equal("ENTRY_LIMIT_EXCEEDED", got.Failed.Code)
}

func (s *PostgresStoreSuite) TestActiveClaimRoundTrip() {
	ctx := context.Background()
	key := s.newKey("user@example.com", models.StateReady)
	s.Require().NoError(s.store.Create(ctx, key))

	claimID := id.NewClaimID()
	key.State = models.StateClaimPending
	key.ActiveClaimID = &claimID
	s.Require().NoError(s.store.Update(ctx, key))

	got, err := s.store.Get(ctx, key.ID)
	s.Require().NoError(err)
	s.Require().True(got.HasActiveClaim())
	s.Equal(claimID, *got.ActiveClaimID)

	got.ActiveClaimID = nil
	s.Require().NoError(s.store.Update(ctx, got))
	got, err = s.store.Get(ctx, key.ID)
	s.Require().NoError(err)
	s.False(got.HasActiveClaim())
}
