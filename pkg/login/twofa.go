package login

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/identity"
	"github.com/workhive/auth/pkg/totp"
)

// TwoFactorSetup carries a freshly provisioned secret back to the client for
// authenticator-app enrollment
type TwoFactorSetup struct {
	Secret string
	URL    string
}

// EnableTwoFactor provisions a TOTP secret for the identity. The secret
// stays pending until VerifyTwoFactorSetup proves the authenticator app has
// it; only then do logins start demanding codes.
func (s *Service) EnableTwoFactor(ctx context.Context, identityID uuid.UUID) (*TwoFactorSetup, error) {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return nil, autherr.IdentityNotFound(identityID.String())
		}
		return nil, autherr.Internal(err)
	}
	if ident.TwoFactorEnabled {
		return nil, autherr.New(autherr.ErrCodeTwoFactorAlreadyEnabled, "two-factor authentication is already enabled")
	}

	secret, err := totp.GenerateSecret(s.config.TwoFactorIssuer, ident.Email)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	_, err = s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
		i.TwoFactorSecret = secret.Secret
		i.TwoFactorEnabled = false
	})
	if err != nil {
		slog.Error("Failed to store pending two-factor secret", "identityID", identityID, "err", err)
		return nil, autherr.Internal(err)
	}

	return &TwoFactorSetup{Secret: secret.Secret, URL: secret.URL}, nil
}

// VerifyTwoFactorSetup confirms the pending secret with a first code and
// turns two-factor on
func (s *Service) VerifyTwoFactorSetup(ctx context.Context, identityID uuid.UUID, code string) error {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return autherr.IdentityNotFound(identityID.String())
		}
		return autherr.Internal(err)
	}
	if ident.TwoFactorEnabled {
		return autherr.New(autherr.ErrCodeTwoFactorAlreadyEnabled, "two-factor authentication is already enabled")
	}
	if ident.TwoFactorSecret == "" {
		return autherr.InvalidInput("code", "no pending two-factor enrollment")
	}

	valid, err := s.totp.VerifyCode(ident.TwoFactorSecret, code)
	if err != nil {
		return autherr.Internal(err)
	}
	if !valid {
		return autherr.InvalidTwoFactorCode()
	}

	_, err = s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
		i.TwoFactorEnabled = true
	})
	if err != nil {
		slog.Error("Failed to enable two-factor", "identityID", identityID, "err", err)
		return autherr.Internal(err)
	}
	slog.Info("Two-factor enabled", "identityID", identityID)
	return nil
}

// DisableTwoFactor turns two-factor off after re-verifying the password.
// Clearing the second factor is a credential change, so earlier-issued
// tokens go stale with it.
func (s *Service) DisableTwoFactor(ctx context.Context, identityID uuid.UUID, password string) error {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return autherr.IdentityNotFound(identityID.String())
		}
		return autherr.Internal(err)
	}
	if !ident.HasPassword() {
		return autherr.InvalidCredentials()
	}

	match, err := s.passwords.Verify(password, ident.PasswordHash, passwordVersion(ident))
	if err != nil {
		return autherr.Internal(err)
	}
	if !match {
		return autherr.InvalidCredentials()
	}
	if !ident.TwoFactorEnabled && ident.TwoFactorSecret == "" {
		return nil
	}

	now := time.Now().UTC()
	_, err = s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
		i.TwoFactorSecret = ""
		i.TwoFactorEnabled = false
		i.PasswordChangedAt = now
	})
	if err != nil {
		slog.Error("Failed to disable two-factor", "identityID", identityID, "err", err)
		return autherr.Internal(err)
	}
	slog.Info("Two-factor disabled", "identityID", identityID)
	return nil
}

// ChangePassword swaps the password after verifying the current one. Every
// token issued before the change fails validation afterwards.
func (s *Service) ChangePassword(ctx context.Context, identityID uuid.UUID, oldPassword, newPassword string) error {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return autherr.IdentityNotFound(identityID.String())
		}
		return autherr.Internal(err)
	}
	if !ident.HasPassword() {
		return autherr.InvalidCredentials()
	}

	match, err := s.passwords.Verify(oldPassword, ident.PasswordHash, passwordVersion(ident))
	if err != nil {
		return autherr.Internal(err)
	}
	if !match {
		return autherr.InvalidCredentials()
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return autherr.Wrap(err, autherr.ErrCodePasswordPolicy, err.Error())
	}

	hash, version, err := s.passwords.Hash(newPassword)
	if err != nil {
		slog.Error("Failed to hash new password", "identityID", identityID, "err", err)
		return autherr.Internal(err)
	}

	now := time.Now().UTC()
	saved, err := s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
		i.PasswordHash = hash
		i.PasswordVersion = int(version)
		i.PasswordChangedAt = now
		i.FailedAttempts = 0
		i.LockedUntil = nil
	})
	if err != nil {
		slog.Error("Failed to change password", "identityID", identityID, "err", err)
		return autherr.Internal(err)
	}
	slog.Info("Password changed", "identityID", identityID)

	s.notifyPasswordChanged(saved)
	return nil
}
