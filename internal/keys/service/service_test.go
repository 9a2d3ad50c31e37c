package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	claimmodels "keybridge/internal/claims/models"
	"keybridge/internal/events"
	"keybridge/internal/keys/models"
	"keybridge/internal/keys/store"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store  *store.MemoryStore
	outbox *events.MemoryOutbox
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.outbox = events.NewMemoryOutbox()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, events.NewPublisher(s.outbox), nil, logger)
}

func (s *ServiceSuite) eventTypes() []claimmodels.DomainEventType {
	var out []claimmodels.DomainEventType
	for _, e := range s.outbox.All() {
		out = append(out, e.EventType)
	}
	return out
}

func (s *ServiceSuite) TestRegister() {
	key, err := s.svc.Register(context.Background(), models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	s.Equal(models.StatePending, key.State)
	s.Equal("alice", key.Owner)
	s.Equal([]claimmodels.DomainEventType{claimmodels.DomainKeyRegistered}, s.eventTypes())
}

func (s *ServiceSuite) TestRegisterRejectsMalformedValue() {
	_, err := s.svc.Register(context.Background(), models.KindEmail, "not-an-email", "alice")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestRegisterDuplicateValueConflicts() {
	ctx := context.Background()
	_, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	_, err = s.svc.Register(ctx, models.KindEmail, "user@example.com", "bob")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestActivate() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	activated, err := s.svc.Activate(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReady, activated.State)

	// Re-applying a landed confirmation changes nothing.
	again, err := s.svc.Activate(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReady, again.State)

	s.Equal([]claimmodels.DomainEventType{
		claimmodels.DomainKeyRegistered,
		claimmodels.DomainKeyReady,
	}, s.eventTypes())
}

func (s *ServiceSuite) TestFailAdd() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	failed, err := s.svc.FailAdd(ctx, key.ID, "ENTRY_LIMIT_EXCEEDED", "participant entry limit reached")
	s.Require().NoError(err)
	s.Equal(models.StateAddFailed, failed.State)
	s.Require().NotNil(failed.Failed)
	s.Equal("ENTRY_LIMIT_EXCEEDED", failed.Failed.Code)
}

func (s *ServiceSuite) TestDeleteFlow() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)
	_, err = s.svc.Activate(ctx, key.ID)
	s.Require().NoError(err)

	deleting, err := s.svc.RequestDelete(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateDeleting, deleting.State)

	deleted, err := s.svc.CompleteDelete(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateDeleted, deleted.State)

	s.Equal([]claimmodels.DomainEventType{
		claimmodels.DomainKeyRegistered,
		claimmodels.DomainKeyReady,
		claimmodels.DomainKeyDeleted,
	}, s.eventTypes())
}

func (s *ServiceSuite) TestDeleteRequiresReadyKey() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	_, err = s.svc.RequestDelete(ctx, key.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestCancel() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	canceled, err := s.svc.Cancel(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateCanceled, canceled.State)
}

func (s *ServiceSuite) TestCancelAfterServiceRejected() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)
	_, err = s.svc.Activate(ctx, key.ID)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(ctx, key.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestRequestClaim() {
	ctx := context.Background()

	owned, err := s.svc.RequestClaim(ctx, models.KindEmail, "user@example.com", "alice", claimmodels.KindOwnership)
	s.Require().NoError(err)
	s.Equal(models.StateOwnershipPending, owned.State)

	ported, err := s.svc.RequestClaim(ctx, models.KindPhone, "+5511998765432", "alice", claimmodels.KindPortability)
	s.Require().NoError(err)
	s.Equal(models.StatePortabilityPending, ported.State)
}

func (s *ServiceSuite) TestRequestClaimUnknownKind() {
	_, err := s.svc.RequestClaim(context.Background(), models.KindEmail, "user@example.com", "alice", "tenancy")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestRequestClaimWhileOneInFlight() {
	ctx := context.Background()
	_, err := s.svc.RequestClaim(ctx, models.KindEmail, "user@example.com", "alice", claimmodels.KindOwnership)
	s.Require().NoError(err)

	_, err = s.svc.RequestClaim(ctx, models.KindEmail, "user@example.com", "alice", claimmodels.KindOwnership)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestGetUnknownKey() {
	_, err := s.svc.Get(context.Background(), id.NewKeyID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLookupReturnsNewestRow() {
	ctx := context.Background()
	key, err := s.svc.Register(ctx, models.KindEmail, "user@example.com", "alice")
	s.Require().NoError(err)

	found, err := s.svc.Lookup(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(key.ID, found.ID)

	_, err = s.svc.Lookup(ctx, "nobody@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
