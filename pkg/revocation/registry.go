// Package revocation implements the registry of explicitly invalidated
// token identifiers consulted before trusting an otherwise-valid token.
//
// Entries carry the underlying token's natural expiry so they can be purged
// once the token would have died anyway. Lookups are O(1) against the
// backing store and purging never blocks the request path. Two backends are
// provided: an in-process cache for single-instance deployments and tests,
// and Redis for deployments where revocations must be shared.
package revocation

import (
	"context"
	"time"
)

// Registry is the revocation contract. Revoking an already-expired token is
// a no-op. A revoke that returns before a lookup starts is visible to that
// lookup.
type Registry interface {
	// Revoke marks a single token identifier as invalid until its natural expiry
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// RevokeFamily marks a whole refresh-token family as invalid; every token
	// carrying the family id fails validation afterwards
	RevokeFamily(ctx context.Context, familyID string, expiresAt time.Time) error

	// IsRevoked reports whether the token identifier has been revoked
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// IsFamilyRevoked reports whether the family has been revoked
	IsFamilyRevoked(ctx context.Context, familyID string) (bool, error)
}

const (
	tokenPrefix  = "token:"
	familyPrefix = "family:"
)
