package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFamilyNotFound = errors.New("token family not found")
	ErrFamilyRevoked  = errors.New("token family revoked")
	ErrTokenConsumed  = errors.New("refresh token already rotated")
)

// RefreshTokenFamily tracks the lineage of refresh tokens descending from a
// single login. Only one token in a family is live at a time; presenting an
// older member again is treated as replay.
type RefreshTokenFamily struct {
	FamilyID       uuid.UUID
	IdentityID     uuid.UUID
	CurrentTokenID string
	IssuedAt       time.Time
	RotatedAt      *time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
}

// Revoked reports whether the whole family has been invalidated
func (f *RefreshTokenFamily) Revoked() bool {
	return f.RevokedAt != nil
}

// FamilyStore persists refresh-token families.
//
// Rotate is the linearization point for refresh: it swaps the family's
// current token id from oldTokenID to newTokenID in a single compare-and-set.
// When two requests race with the same oldTokenID, exactly one succeeds and
// the other observes ErrTokenConsumed.
type FamilyStore interface {
	Create(ctx context.Context, family RefreshTokenFamily) error
	Get(ctx context.Context, familyID uuid.UUID) (RefreshTokenFamily, error)
	Rotate(ctx context.Context, familyID uuid.UUID, oldTokenID, newTokenID string, rotatedAt time.Time) error
	MarkRevoked(ctx context.Context, familyID uuid.UUID, revokedAt time.Time) error

	// DeleteExpired purges families whose refresh tokens can no longer
	// verify anyway. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
