package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
)

// MemoryStore keeps claims in a map guarded by a mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*models.Claim
}

func NewMemory() *MemoryStore {
	return &MemoryStore{claims: make(map[id.ClaimID]*models.Claim)}
}

func (s *MemoryStore) Create(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.claims {
		if existing.KeyID == claim.KeyID && existing.Status.Active() {
			return fmt.Errorf("key %s already has active claim %s: %w",
				claim.KeyID, existing.ID, sentinel.ErrConflict)
		}
	}
	cp := *claim
	cp.Version = 1
	cp.UpdatedAt = time.Now()
	s.claims[claim.ID] = &cp
	claim.Version = cp.Version
	claim.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	cp := *claim
	return &cp, nil
}

func (s *MemoryStore) FindActiveByKey(_ context.Context, keyID id.KeyID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, claim := range s.claims {
		if claim.KeyID == keyID && claim.Status.Active() {
			cp := *claim
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("active claim for key %s: %w", keyID, sentinel.ErrNotFound)
}

func (s *MemoryStore) Update(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.claims[claim.ID]
	if !ok {
		return fmt.Errorf("claim %s: %w", claim.ID, sentinel.ErrNotFound)
	}
	if current.Version != claim.Version {
		return fmt.Errorf("claim %s version %d: %w", claim.ID, claim.Version, sentinel.ErrConflict)
	}
	cp := *claim
	cp.Version++
	cp.UpdatedAt = time.Now()
	s.claims[claim.ID] = &cp
	claim.Version = cp.Version
	claim.UpdatedAt = cp.UpdatedAt
	return nil
}
