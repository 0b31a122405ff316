package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage.
// Used by tests and the memory-mode server.
type InMemoryRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]Identity
	byEmail    map[string]uuid.UUID
	byProvider map[providerKey]uuid.UUID
}

type providerKey struct {
	provider string
	subject  string
}

// NewInMemoryRepository creates a new in-memory identity repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:       make(map[uuid.UUID]Identity),
		byEmail:    make(map[string]uuid.UUID),
		byProvider: make(map[providerKey]uuid.UUID),
	}
}

// FindByEmail implements Repository.FindByEmail
func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return r.byID[id].Clone(), nil
}

// FindByID implements Repository.FindByID
func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return ident.Clone(), nil
}

// FindByProviderSubject implements Repository.FindByProviderSubject
func (r *InMemoryRepository) FindByProviderSubject(ctx context.Context, provider, subject string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byProvider[providerKey{provider, subject}]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return r.byID[id].Clone(), nil
}

// Create implements Repository.Create
func (r *InMemoryRepository) Create(ctx context.Context, ident Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident.Email = NormalizeEmail(ident.Email)
	if _, exists := r.byEmail[ident.Email]; exists {
		return Identity{}, ErrDuplicateEmail
	}
	for _, l := range ident.Providers {
		if _, exists := r.byProvider[providerKey{l.Provider, l.Subject}]; exists {
			return Identity{}, ErrDuplicateProviderLink
		}
	}

	now := time.Now().UTC()
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	if ident.PasswordChangedAt.IsZero() {
		ident.PasswordChangedAt = now
	}
	ident.Version = 1
	ident.CreatedAt = now
	ident.UpdatedAt = now

	stored := ident.Clone()
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	for _, l := range stored.Providers {
		r.byProvider[providerKey{l.Provider, l.Subject}] = stored.ID
	}
	return stored.Clone(), nil
}

// Save implements Repository.Save
func (r *InMemoryRepository) Save(ctx context.Context, ident Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[ident.ID]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	if current.Version != ident.Version {
		return Identity{}, ErrVersionConflict
	}

	ident.Email = NormalizeEmail(ident.Email)
	if ident.Email != current.Email {
		if owner, exists := r.byEmail[ident.Email]; exists && owner != ident.ID {
			return Identity{}, ErrDuplicateEmail
		}
	}
	for _, l := range ident.Providers {
		if owner, exists := r.byProvider[providerKey{l.Provider, l.Subject}]; exists && owner != ident.ID {
			return Identity{}, ErrDuplicateProviderLink
		}
	}

	ident.Version = current.Version + 1
	ident.CreatedAt = current.CreatedAt
	ident.UpdatedAt = time.Now().UTC()

	stored := ident.Clone()
	if current.Email != stored.Email {
		delete(r.byEmail, current.Email)
	}
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	for _, l := range stored.Providers {
		r.byProvider[providerKey{l.Provider, l.Subject}] = stored.ID
	}
	return stored.Clone(), nil
}
