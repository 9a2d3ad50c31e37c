// Package service owns the registration branch of the key lifecycle: the
// transitions driven by this participant's own users and the directory's
// answers to them, as opposed to the claim branch driven by bus events.
package service

import (
	"context"
	"errors"
	"log/slog"

	claimmodels "keybridge/internal/claims/models"
	"keybridge/internal/events"
	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
	"keybridge/pkg/platform/sentinel"
)

// Store is the slice of the key store the service uses.
type Store interface {
	Create(ctx context.Context, key *models.Key) error
	Get(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	FindByValue(ctx context.Context, value string) (*models.Key, error)
	Update(ctx context.Context, key *models.Key) error
}

// TxRunner scopes a function to one database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service drives registration-branch transitions and starts claimant-side
// claim episodes.
type Service struct {
	store     Store
	publisher *events.Publisher
	inTx      TxRunner
	logger    *slog.Logger
}

func NewService(store Store, publisher *events.Publisher, inTx TxRunner, logger *slog.Logger) *Service {
	if inTx == nil {
		inTx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		store:     store,
		publisher: publisher,
		inTx:      inTx,
		logger:    logger,
	}
}

// Register records a new key in PENDING pending the directory's confirmation.
// A value already registered or under an active registration is a conflict.
func (s *Service) Register(ctx context.Context, kind models.KeyKind, value, owner string) (*models.Key, error) {
	if err := models.ValidateValue(kind, value); err != nil {
		return nil, err
	}

	key := &models.Key{
		ID:    id.NewKeyID(),
		Value: value,
		Kind:  kind,
		Owner: owner,
		State: models.StatePending,
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, key); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "key value already registered")
			}
			return err
		}
		return s.emit(ctx, key, claimmodels.DomainKeyRegistered)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "key registered", "key_id", key.ID, "kind", string(kind))
	return key, nil
}

// Activate moves a pending registration into service once the directory
// confirms it.
func (s *Service) Activate(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, models.StateReady, claimmodels.DomainKeyReady,
		models.StatePending, models.StateConfirmed)
}

// FailAdd marks a pending registration the directory rejected.
func (s *Service) FailAdd(ctx context.Context, keyID id.KeyID, code, message string) (*models.Key, error) {
	key, err := s.load(ctx, keyID, models.StatePending, models.StateConfirmed)
	if err != nil {
		return nil, err
	}
	key.State = models.StateAddFailed
	key.Failed = &models.Failure{Code: code, Message: message}
	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.store.Update(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// RequestDelete starts removing an in-service key from the directory.
func (s *Service) RequestDelete(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, models.StateDeleting, "",
		models.StateReady)
}

// CompleteDelete lands the directory's deletion acknowledgement.
func (s *Service) CompleteDelete(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, models.StateDeleted, claimmodels.DomainKeyDeleted,
		models.StateDeleting)
}

// Cancel withdraws a registration that has not reached service yet.
func (s *Service) Cancel(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, models.StateCanceled, claimmodels.DomainKeyCanceled,
		models.StatePending, models.StateConfirmed)
}

// RequestClaim creates the claimant-side row for a key custodied elsewhere.
// The row waits in the claim branch's pending state until the directory's
// claim-opened event arrives and the process handlers take over.
func (s *Service) RequestClaim(ctx context.Context, kind models.KeyKind, value, owner string, claimKind claimmodels.ClaimKind) (*models.Key, error) {
	if err := models.ValidateValue(kind, value); err != nil {
		return nil, err
	}
	state := models.StateOwnershipPending
	if claimKind == claimmodels.KindPortability {
		state = models.StatePortabilityPending
	} else if claimKind != claimmodels.KindOwnership {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown claim kind %q", claimKind)
	}

	key := &models.Key{
		ID:    id.NewKeyID(),
		Value: value,
		Kind:  kind,
		Owner: owner,
		State: state,
	}
	if err := s.store.Create(ctx, key); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "key already has a claim in flight")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "claim requested",
		"key_id", key.ID,
		"claim_kind", string(claimKind),
	)
	return key, nil
}

// Get returns one key by ID.
func (s *Service) Get(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	key, err := s.store.Get(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "key not found")
		}
		return nil, err
	}
	return key, nil
}

// Lookup returns the newest row for a key value.
func (s *Service) Lookup(ctx context.Context, value string) (*models.Key, error) {
	key, err := s.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "key not found")
		}
		return nil, err
	}
	return key, nil
}

func (s *Service) transition(
	ctx context.Context,
	keyID id.KeyID,
	to models.KeyState,
	event claimmodels.DomainEventType,
	from ...models.KeyState,
) (*models.Key, error) {
	// Re-applying a landed transition is a no-op.
	key, err := s.load(ctx, keyID, append(from, to)...)
	if err != nil {
		return nil, err
	}
	if key.State == to {
		return key, nil
	}
	key.State = to
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, key); err != nil {
			return err
		}
		if event == "" {
			return nil
		}
		return s.emit(ctx, key, event)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Service) load(ctx context.Context, keyID id.KeyID, allowed ...models.KeyState) (*models.Key, error) {
	key, err := s.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	for _, state := range allowed {
		if key.State == state {
			return key, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeInvalidState,
		"key %s is in state %s", keyID, key.State)
}

func (s *Service) emit(ctx context.Context, key *models.Key, event claimmodels.DomainEventType) error {
	return s.publisher.Emit(ctx, claimmodels.DomainEvent{
		Type:     event,
		KeyID:    key.ID,
		KeyValue: key.Value,
		KeyKind:  key.Kind,
		State:    key.State,
	})
}
