package revocation

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryRegistry implements Registry with an in-process cache. Expired
// entries are dropped lazily on read and swept by a background janitor,
// so the request path never waits on cleanup.
type MemoryRegistry struct {
	c *gocache.Cache
}

// NewMemoryRegistry creates an in-memory registry with a one-minute janitor
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		c: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Revoke implements Registry.Revoke
func (r *MemoryRegistry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return r.set(tokenPrefix+tokenID, expiresAt)
}

// RevokeFamily implements Registry.RevokeFamily
func (r *MemoryRegistry) RevokeFamily(ctx context.Context, familyID string, expiresAt time.Time) error {
	return r.set(familyPrefix+familyID, expiresAt)
}

// IsRevoked implements Registry.IsRevoked
func (r *MemoryRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, found := r.c.Get(tokenPrefix + tokenID)
	return found, nil
}

// IsFamilyRevoked implements Registry.IsFamilyRevoked
func (r *MemoryRegistry) IsFamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	_, found := r.c.Get(familyPrefix + familyID)
	return found, nil
}

func (r *MemoryRegistry) set(key string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// The token is already dead on its own; nothing to record
		return nil
	}
	r.c.Set(key, struct{}{}, ttl)
	return nil
}

// Len reports the number of live entries, including any not yet swept
func (r *MemoryRegistry) Len() int {
	return r.c.ItemCount()
}
