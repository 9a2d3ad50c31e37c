package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
)

// MemoryStore keeps keys in a map guarded by a mutex. It implements the same
// version compare-and-swap the PostgreSQL store does, so handler tests exercise
// real conflict behavior.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[id.KeyID]*models.Key
}

func NewMemory() *MemoryStore {
	return &MemoryStore{keys: make(map[id.KeyID]*models.Key)}
}

func (s *MemoryStore) Create(_ context.Context, key *models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := strings.ToLower(strings.TrimSpace(key.Value))
	for _, existing := range s.keys {
		if strings.ToLower(existing.Value) != value {
			continue
		}
		// A holder row and a claimant row may share a value during a claim.
		// What conflicts is a second row of the same branch: another active
		// registration, or another claim already in flight.
		if registeredState(existing.State) && registeredState(key.State) {
			return fmt.Errorf("key value %q: %w", key.Value, sentinel.ErrConflict)
		}
		if claimInFlightState(existing.State) && claimInFlightState(key.State) {
			return fmt.Errorf("key value %q: %w", key.Value, sentinel.ErrConflict)
		}
	}
	cp := *key
	cp.Version = 1
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.keys[key.ID] = &cp
	key.Version = cp.Version
	key.CreatedAt = cp.CreatedAt
	key.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, keyID id.KeyID) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", keyID, sentinel.ErrNotFound)
	}
	cp := *key
	return &cp, nil
}

func (s *MemoryStore) FindByValue(_ context.Context, value string) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findByValueLocked(value, nil)
}

func (s *MemoryStore) FindHolderByValue(_ context.Context, value string) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findByValueLocked(value, holderStates)
}

func (s *MemoryStore) FindClaimantByValue(_ context.Context, value string) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findByValueLocked(value, claimantStates)
}

var holderStates = map[models.KeyState]struct{}{
	models.StateReady:             {},
	models.StateClaimPending:      {},
	models.StateClaimClosing:      {},
	models.StateClaimClosed:       {},
	models.StateClaimDenied:       {},
	models.StateClaimNotConfirmed: {},
}

var claimantStates = map[models.KeyState]struct{}{
	models.StateOwnershipPending:     {},
	models.StateOwnershipOpened:      {},
	models.StateOwnershipStarted:     {},
	models.StateOwnershipWaiting:     {},
	models.StateOwnershipConfirmed:   {},
	models.StateOwnershipCanceling:   {},
	models.StateOwnershipCanceled:    {},
	models.StateOwnershipReady:       {},
	models.StatePortabilityPending:   {},
	models.StatePortabilityOpened:    {},
	models.StatePortabilityStarted:   {},
	models.StatePortabilityConfirmed: {},
	models.StatePortabilityCanceling: {},
	models.StatePortabilityCanceled:  {},
	models.StatePortabilityReady:     {},
}

func registeredState(s models.KeyState) bool {
	switch s {
	case models.StatePending, models.StateConfirmed, models.StateReady:
		return true
	}
	return false
}

// claimInFlightState covers the claimant-side states a value may hold at most
// one row in. Terminal claimant states (canceled, ready) do not block a new
// claim.
func claimInFlightState(s models.KeyState) bool {
	switch s {
	case models.StateOwnershipPending, models.StateOwnershipOpened,
		models.StateOwnershipStarted, models.StateOwnershipWaiting,
		models.StateOwnershipConfirmed, models.StateOwnershipCanceling,
		models.StatePortabilityPending, models.StatePortabilityOpened,
		models.StatePortabilityStarted, models.StatePortabilityConfirmed,
		models.StatePortabilityCanceling:
		return true
	}
	return false
}

func (s *MemoryStore) findByValueLocked(value string, states map[models.KeyState]struct{}) (*models.Key, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	var newest *models.Key
	for _, key := range s.keys {
		if strings.ToLower(key.Value) != value {
			continue
		}
		if states != nil {
			if _, ok := states[key.State]; !ok {
				continue
			}
		}
		if newest == nil || key.UpdatedAt.After(newest.UpdatedAt) {
			newest = key
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("key value %q: %w", value, sentinel.ErrNotFound)
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, key *models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.keys[key.ID]
	if !ok {
		return fmt.Errorf("key %s: %w", key.ID, sentinel.ErrNotFound)
	}
	if current.Version != key.Version {
		return fmt.Errorf("key %s version %d: %w", key.ID, key.Version, sentinel.ErrConflict)
	}
	cp := *key
	cp.Version++
	cp.UpdatedAt = time.Now()
	s.keys[key.ID] = &cp
	key.Version = cp.Version
	key.UpdatedAt = cp.UpdatedAt
	return nil
}
