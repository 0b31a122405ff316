package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryFamilyStore is a FamilyStore for tests and single-process
// deployments. The mutex makes Rotate an atomic compare-and-set.
type InMemoryFamilyStore struct {
	mu       sync.Mutex
	families map[uuid.UUID]RefreshTokenFamily
}

func NewInMemoryFamilyStore() *InMemoryFamilyStore {
	return &InMemoryFamilyStore{
		families: make(map[uuid.UUID]RefreshTokenFamily),
	}
}

func (s *InMemoryFamilyStore) Create(_ context.Context, family RefreshTokenFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[family.FamilyID] = family
	return nil
}

func (s *InMemoryFamilyStore) Get(_ context.Context, familyID uuid.UUID) (RefreshTokenFamily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	family, ok := s.families[familyID]
	if !ok {
		return RefreshTokenFamily{}, ErrFamilyNotFound
	}
	return family, nil
}

func (s *InMemoryFamilyStore) Rotate(_ context.Context, familyID uuid.UUID, oldTokenID, newTokenID string, rotatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	family, ok := s.families[familyID]
	if !ok {
		return ErrFamilyNotFound
	}
	if family.RevokedAt != nil {
		return ErrFamilyRevoked
	}
	if family.CurrentTokenID != oldTokenID {
		return ErrTokenConsumed
	}

	family.CurrentTokenID = newTokenID
	family.RotatedAt = &rotatedAt
	s.families[familyID] = family
	return nil
}

func (s *InMemoryFamilyStore) MarkRevoked(_ context.Context, familyID uuid.UUID, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	family, ok := s.families[familyID]
	if !ok {
		return ErrFamilyNotFound
	}
	if family.RevokedAt == nil {
		family.RevokedAt = &revokedAt
		s.families[familyID] = family
	}
	return nil
}

func (s *InMemoryFamilyStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, family := range s.families {
		if family.ExpiresAt.Before(now) {
			delete(s.families, id)
			removed++
		}
	}
	return removed, nil
}
