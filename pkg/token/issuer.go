package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/revocation"
)

const (
	DefaultAccessTokenExpiry       = 15 * time.Minute
	DefaultRefreshTokenExpiry      = 720 * time.Hour
	DefaultChallengeTokenExpiry    = 5 * time.Minute
	DefaultEmailVerificationExpiry = 24 * time.Hour
)

// TokenPair is what a successful login or refresh hands back to the client
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints token pairs, rotates refresh tokens, and detects replay
// through the family store.
type Issuer struct {
	generator Generator
	families  FamilyStore
	registry  revocation.Registry

	accessTokenExpiry       time.Duration
	refreshTokenExpiry      time.Duration
	challengeTokenExpiry    time.Duration
	emailVerificationExpiry time.Duration
}

// Option configures an Issuer
type Option func(*Issuer)

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) Option {
	return func(s *Issuer) {
		if expiry > 0 {
			s.accessTokenExpiry = expiry
		}
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) Option {
	return func(s *Issuer) {
		if expiry > 0 {
			s.refreshTokenExpiry = expiry
		}
	}
}

// WithChallengeTokenExpiry sets the two-factor challenge token expiry duration
func WithChallengeTokenExpiry(expiry time.Duration) Option {
	return func(s *Issuer) {
		if expiry > 0 {
			s.challengeTokenExpiry = expiry
		}
	}
}

// WithEmailVerificationExpiry sets the email verification token expiry duration
func WithEmailVerificationExpiry(expiry time.Duration) Option {
	return func(s *Issuer) {
		if expiry > 0 {
			s.emailVerificationExpiry = expiry
		}
	}
}

// NewIssuer creates an Issuer with the given generator, family store and
// revocation registry
func NewIssuer(generator Generator, families FamilyStore, registry revocation.Registry, opts ...Option) *Issuer {
	issuer := &Issuer{
		generator:               generator,
		families:                families,
		registry:                registry,
		accessTokenExpiry:       DefaultAccessTokenExpiry,
		refreshTokenExpiry:      DefaultRefreshTokenExpiry,
		challengeTokenExpiry:    DefaultChallengeTokenExpiry,
		emailVerificationExpiry: DefaultEmailVerificationExpiry,
	}

	for _, opt := range opts {
		opt(issuer)
	}

	slog.Info("Token issuer configured",
		"accessTokenExpiry", issuer.accessTokenExpiry,
		"refreshTokenExpiry", issuer.refreshTokenExpiry,
		"challengeTokenExpiry", issuer.challengeTokenExpiry,
		"emailVerificationExpiry", issuer.emailVerificationExpiry)
	return issuer
}

// Issue mints a fresh access/refresh pair for the identity and opens a new
// refresh-token family. Provider records which login path produced the pair.
func (s *Issuer) Issue(ctx context.Context, identityID uuid.UUID, provider string) (*TokenPair, error) {
	familyID := uuid.New()
	subject := identityID.String()

	refreshToken, refreshClaims, err := s.generator.Generate(subject, UseRefresh, s.refreshTokenExpiry, familyID.String(), provider)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	accessToken, accessClaims, err := s.generator.Generate(subject, UseAccess, s.accessTokenExpiry, familyID.String(), provider)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	family := RefreshTokenFamily{
		FamilyID:       familyID,
		IdentityID:     identityID,
		CurrentTokenID: refreshClaims.ID,
		IssuedAt:       refreshClaims.IssuedAt.Time,
		ExpiresAt:      refreshClaims.ExpiresAt.Time,
	}
	if err := s.families.Create(ctx, family); err != nil {
		slog.Error("Failed to create token family", "identityID", identityID, "err", err)
		return nil, autherr.Internal(err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair within the same
// family. Presenting a refresh token that has already been rotated revokes
// the whole family and reports replay.
func (s *Issuer) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.generator.Parse(refreshToken)
	if err != nil {
		return nil, autherr.InvalidOrExpiredToken()
	}
	if claims.Use != UseRefresh {
		return nil, autherr.InvalidOrExpiredToken()
	}

	familyID, err := uuid.Parse(claims.FamilyID)
	if err != nil {
		return nil, autherr.InvalidOrExpiredToken()
	}
	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, autherr.InvalidOrExpiredToken()
	}

	revoked, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if revoked {
		return nil, autherr.InvalidOrExpiredToken()
	}
	familyRevoked, err := s.registry.IsFamilyRevoked(ctx, claims.FamilyID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if familyRevoked {
		return nil, autherr.InvalidOrExpiredToken()
	}

	subject := identityID.String()
	newRefreshToken, newRefreshClaims, err := s.generator.Generate(subject, UseRefresh, s.refreshTokenExpiry, claims.FamilyID, claims.Provider)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	now := time.Now().UTC()
	switch err := s.families.Rotate(ctx, familyID, claims.ID, newRefreshClaims.ID, now); err {
	case nil:
	case ErrTokenConsumed:
		s.revokeReplayedFamily(ctx, familyID, claims)
		return nil, autherr.TokenReplayDetected()
	case ErrFamilyRevoked, ErrFamilyNotFound:
		return nil, autherr.InvalidOrExpiredToken()
	default:
		slog.Error("Failed to rotate token family", "familyID", familyID, "err", err)
		return nil, autherr.Internal(err)
	}

	accessToken, accessClaims, err := s.generator.Generate(subject, UseAccess, s.accessTokenExpiry, claims.FamilyID, claims.Provider)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     newRefreshToken,
		RefreshExpiresAt: newRefreshClaims.ExpiresAt.Time,
	}, nil
}

// revokeReplayedFamily invalidates an entire family after replay. The
// registry entry outlives the longest-lived member, so every token carrying
// this family id dies with it.
func (s *Issuer) revokeReplayedFamily(ctx context.Context, familyID uuid.UUID, claims *Claims) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.refreshTokenExpiry)
	if family, err := s.families.Get(ctx, familyID); err == nil {
		expiresAt = family.ExpiresAt
	}

	if err := s.registry.RevokeFamily(ctx, familyID.String(), expiresAt); err != nil {
		slog.Error("Failed to revoke replayed token family", "familyID", familyID, "err", err)
	}
	if err := s.families.MarkRevoked(ctx, familyID, now); err != nil && err != ErrFamilyNotFound {
		slog.Error("Failed to mark token family revoked", "familyID", familyID, "err", err)
	}
	slog.Warn("Refresh token replay detected", "familyID", familyID, "identityID", claims.Subject)
}

// IssueChallenge mints the short-lived token that carries a pending login
// between the password step and the two-factor step
func (s *Issuer) IssueChallenge(ctx context.Context, identityID uuid.UUID) (string, time.Time, error) {
	challengeToken, claims, err := s.generator.Generate(identityID.String(), UseChallenge, s.challengeTokenExpiry, "", "")
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	return challengeToken, claims.ExpiresAt.Time, nil
}

// IssueEmailVerification mints the single-use token embedded in the
// verification email
func (s *Issuer) IssueEmailVerification(ctx context.Context, identityID uuid.UUID) (string, time.Time, error) {
	verifyToken, claims, err := s.generator.Generate(identityID.String(), UseEmailVerification, s.emailVerificationExpiry, "", "")
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	return verifyToken, claims.ExpiresAt.Time, nil
}
