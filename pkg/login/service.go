// Package login implements the account flows of the auth subsystem: signup,
// password and two-factor login, OAuth profile login, refresh-token rotation,
// logout, and email verification. It owns the failed-attempt counter and the
// lockout state machine.
package login

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/identity"
	"github.com/workhive/auth/pkg/notify"
	"github.com/workhive/auth/pkg/password"
	"github.com/workhive/auth/pkg/provider"
	"github.com/workhive/auth/pkg/revocation"
	"github.com/workhive/auth/pkg/token"
	"github.com/workhive/auth/pkg/totp"
)

// ProviderPassword tags tokens minted by the password (and two-factor) flows
const ProviderPassword = "password"

// maxSaveRetries bounds the compare-and-set retry loops on counter updates
const maxSaveRetries = 3

// notifyTimeout caps how long a fire-and-forget notification may take
const notifyTimeout = 15 * time.Second

// Service orchestrates the login flows
type Service struct {
	identities identity.Repository
	issuer     *token.Issuer
	generator  token.Generator
	registry   revocation.Registry

	passwords *password.Manager
	policy    *password.Policy
	totp      *totp.Verifier
	providers *provider.Registry
	notifier  notify.Notifier

	config Config
}

// NewServiceWithConfig creates a login Service over the given stores.
// Optional collaborators default to a fresh password manager, the default
// password policy, a verifier built from Config.TOTPSkewSteps, an empty
// provider registry, and a no-op notifier.
func NewServiceWithConfig(
	identities identity.Repository,
	issuer *token.Issuer,
	generator token.Generator,
	registry revocation.Registry,
	config Config,
	opts ...Option,
) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, autherr.Configuration(err.Error())
	}

	service := &Service{
		identities: identities,
		issuer:     issuer,
		generator:  generator,
		registry:   registry,
		passwords:  password.NewManager(),
		policy:     password.DefaultPolicy(),
		totp:       totp.NewVerifier(config.TOTPSkewSteps),
		providers:  provider.NewRegistry(),
		notifier:   notify.NewNoopNotifier(),
		config:     config,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SignupParams are the inputs to Signup
type SignupParams struct {
	Email    string
	Password string
	Name     string
}

// SignupResult reports the created identity, its first token pair, and
// whether email verification is still outstanding
type SignupResult struct {
	Identity             identity.Identity
	Tokens               *token.TokenPair
	RequiresVerification bool
}

// LoginResult is the outcome of a successful (or two-factor-pending) login
type LoginResult struct {
	Identity           identity.Identity
	TwoFactorRequired  bool
	ChallengeToken     string
	ChallengeExpiresAt time.Time
	Tokens             *token.TokenPair
}

// Signup creates a new password identity, issues its first token pair, and
// requests a verification email
func (s *Service) Signup(ctx context.Context, params SignupParams) (*SignupResult, error) {
	email := identity.NormalizeEmail(params.Email)
	if email == "" {
		return nil, autherr.InvalidInput("email", "must not be empty")
	}
	if err := s.policy.Validate(params.Password); err != nil {
		return nil, autherr.Wrap(err, autherr.ErrCodePasswordPolicy, err.Error())
	}

	hash, version, err := s.passwords.Hash(params.Password)
	if err != nil {
		slog.Error("Failed to hash password", "err", err)
		return nil, autherr.Internal(err)
	}

	created, err := s.identities.Create(ctx, identity.Identity{
		Email:           email,
		Name:            params.Name,
		PasswordHash:    hash,
		PasswordVersion: int(version),
	})
	if err != nil {
		if err == identity.ErrDuplicateEmail {
			return nil, autherr.DuplicateIdentity(email)
		}
		slog.Error("Failed to create identity", "email", email, "err", err)
		return nil, autherr.Internal(err)
	}
	slog.Info("Identity created", "identityID", created.ID, "email", created.Email)

	pair, err := s.issuer.Issue(ctx, created.ID, ProviderPassword)
	if err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, created)

	return &SignupResult{
		Identity:             created,
		Tokens:               pair,
		RequiresVerification: !created.EmailVerified,
	}, nil
}

// Login authenticates an email/password pair. When the identity has
// two-factor enabled the result carries a challenge token instead of an
// access/refresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ident, err := s.identities.FindByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return nil, autherr.InvalidCredentials()
		}
		return nil, autherr.Internal(err)
	}

	now := time.Now().UTC()
	if ident.Locked(now) {
		return nil, autherr.AccountLocked(*ident.LockedUntil)
	}
	if !ident.HasPassword() {
		// OAuth-only identity, nothing to compare against
		return nil, autherr.InvalidCredentials()
	}

	match, err := s.passwords.Verify(password, ident.PasswordHash, passwordVersion(ident))
	if err != nil {
		slog.Error("Failed to verify password", "identityID", ident.ID, "err", err)
		return nil, autherr.Internal(err)
	}
	if !match {
		s.recordLoginFailure(ctx, ident)
		return nil, autherr.InvalidCredentials()
	}

	if s.config.RequireVerifiedEmail && !ident.EmailVerified {
		return nil, autherr.New(autherr.ErrCodeEmailNotVerified, "email address has not been verified")
	}

	if ident.TwoFactorEnabled {
		challenge, expiresAt, err := s.issuer.IssueChallenge(ctx, ident.ID)
		if err != nil {
			return nil, err
		}
		return &LoginResult{
			Identity:           ident,
			TwoFactorRequired:  true,
			ChallengeToken:     challenge,
			ChallengeExpiresAt: expiresAt,
		}, nil
	}

	ident = s.finishLogin(ctx, ident, password)
	pair, err := s.issuer.Issue(ctx, ident.ID, ProviderPassword)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: ident, Tokens: pair}, nil
}

// VerifyTwoFactor completes a two-factor login. The identity is taken from
// the challenge token's subject, never from caller input, and the challenge
// is consumed on success.
func (s *Service) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*LoginResult, error) {
	claims, err := s.generator.Parse(challengeToken)
	if err != nil || claims.Use != token.UseChallenge {
		return nil, autherr.InvalidOrExpiredToken()
	}
	consumed, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if consumed {
		return nil, autherr.InvalidOrExpiredToken()
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, autherr.InvalidOrExpiredToken()
	}
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return nil, autherr.IdentityNotFound(claims.Subject)
		}
		return nil, autherr.Internal(err)
	}

	now := time.Now().UTC()
	if ident.Locked(now) {
		return nil, autherr.AccountLocked(*ident.LockedUntil)
	}
	if !ident.TwoFactorEnabled || ident.TwoFactorSecret == "" {
		return nil, autherr.InvalidOrExpiredToken()
	}

	valid, err := s.totp.VerifyCode(ident.TwoFactorSecret, code)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if !valid {
		s.recordLoginFailure(ctx, ident)
		return nil, autherr.InvalidTwoFactorCode()
	}

	// Consume the challenge before handing out tokens, so it stays single-use
	if err := s.registry.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Error("Failed to consume challenge token", "tokenID", claims.ID, "err", err)
		return nil, autherr.Internal(err)
	}

	ident = s.finishLogin(ctx, ident, "")
	pair, err := s.issuer.Issue(ctx, ident.ID, ProviderPassword)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: ident, Tokens: pair}, nil
}

// OAuthLogin signs in a profile that an external provider has already
// authenticated. Existing identities are matched by (provider, subject)
// first; linking by email requires both sides verified.
func (s *Service) OAuthLogin(ctx context.Context, profile provider.Profile) (*LoginResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, autherr.InvalidInput("profile", err.Error())
	}
	if !s.providers.Enabled(profile.Provider) {
		return nil, autherr.InvalidInput("provider", "unknown or disabled provider")
	}
	email := identity.NormalizeEmail(profile.Email)

	ident, err := s.identities.FindByProviderSubject(ctx, profile.Provider, profile.Subject)
	switch err {
	case nil:
		return s.oauthSuccess(ctx, ident, profile.Provider)
	case identity.ErrIdentityNotFound:
	default:
		return nil, autherr.Internal(err)
	}

	existing, err := s.identities.FindByEmail(ctx, email)
	switch err {
	case nil:
		// An identity with this email already exists under another login
		// method. Linking silently would let a provider account take over
		// an email it never proved, so both sides must be verified.
		if !existing.EmailVerified || !profile.EmailVerified {
			return nil, autherr.DuplicateIdentity(email)
		}
		linked, err := s.linkProvider(ctx, existing, profile)
		if err != nil {
			return nil, err
		}
		return s.oauthSuccess(ctx, linked, profile.Provider)
	case identity.ErrIdentityNotFound:
	default:
		return nil, autherr.Internal(err)
	}

	created, err := s.identities.Create(ctx, identity.Identity{
		Email:         email,
		Name:          profile.Name,
		EmailVerified: profile.EmailVerified,
		Providers: []identity.ProviderLink{
			{Provider: profile.Provider, Subject: profile.Subject, LinkedAt: time.Now().UTC()},
		},
	})
	if err != nil {
		if err == identity.ErrDuplicateEmail || err == identity.ErrDuplicateProviderLink {
			return nil, autherr.DuplicateIdentity(email)
		}
		slog.Error("Failed to create identity from oauth profile", "provider", profile.Provider, "err", err)
		return nil, autherr.Internal(err)
	}
	slog.Info("Identity created from oauth profile", "identityID", created.ID, "provider", profile.Provider)
	return s.oauthSuccess(ctx, created, profile.Provider)
}

func (s *Service) oauthSuccess(ctx context.Context, ident identity.Identity, providerID string) (*LoginResult, error) {
	if ident.Locked(time.Now().UTC()) {
		return nil, autherr.AccountLocked(*ident.LockedUntil)
	}
	ident = s.finishLogin(ctx, ident, "")
	pair, err := s.issuer.Issue(ctx, ident.ID, providerID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: ident, Tokens: pair}, nil
}

func (s *Service) linkProvider(ctx context.Context, ident identity.Identity, profile provider.Profile) (identity.Identity, error) {
	now := time.Now().UTC()
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		ident.AddLink(profile.Provider, profile.Subject, now)
		saved, err := s.identities.Save(ctx, ident)
		switch err {
		case nil:
			slog.Info("Linked provider to identity", "identityID", saved.ID, "provider", profile.Provider)
			return saved, nil
		case identity.ErrVersionConflict:
			fresh, ferr := s.identities.FindByID(ctx, ident.ID)
			if ferr != nil {
				return identity.Identity{}, autherr.Internal(ferr)
			}
			ident = fresh
		case identity.ErrDuplicateProviderLink:
			// Another login linked the same provider subject concurrently
			fresh, ferr := s.identities.FindByProviderSubject(ctx, profile.Provider, profile.Subject)
			if ferr != nil {
				return identity.Identity{}, autherr.Internal(ferr)
			}
			return fresh, nil
		default:
			return identity.Identity{}, autherr.Internal(err)
		}
	}
	return identity.Identity{}, autherr.Internal(identity.ErrVersionConflict)
}

// Refresh rotates a refresh token into a new pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.TokenPair, error) {
	return s.issuer.Rotate(ctx, refreshToken)
}

// Logout revokes the presented tokens until their natural expiry. Expired or
// malformed inputs are skipped; calling Logout twice is harmless.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, raw := range []string{accessToken, refreshToken} {
		if raw == "" {
			continue
		}
		claims, err := s.generator.ParseExpired(raw)
		if err != nil {
			slog.Debug("Skipping unparseable token on logout", "err", err)
			continue
		}
		if err := s.registry.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			slog.Error("Failed to revoke token on logout", "tokenID", claims.ID, "err", err)
			return autherr.Internal(err)
		}
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the identity's email
// verified
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	claims, err := s.generator.Parse(rawToken)
	if err != nil || claims.Use != token.UseEmailVerification {
		return autherr.InvalidOrExpiredToken()
	}
	used, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return autherr.Internal(err)
	}
	if used {
		return autherr.InvalidOrExpiredToken()
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return autherr.InvalidOrExpiredToken()
	}
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return autherr.IdentityNotFound(claims.Subject)
		}
		return autherr.Internal(err)
	}

	if !ident.EmailVerified {
		_, err = s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
			i.EmailVerified = true
		})
		if err != nil {
			return autherr.Internal(err)
		}
		slog.Info("Email verified", "identityID", ident.ID, "email", ident.Email)
	}

	if err := s.registry.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Error("Failed to consume verification token", "tokenID", claims.ID, "err", err)
	}
	return nil
}

// GetMe returns the identity behind an authenticated principal
func (s *Service) GetMe(ctx context.Context, identityID uuid.UUID) (identity.Identity, error) {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if err == identity.ErrIdentityNotFound {
			return identity.Identity{}, autherr.IdentityNotFound(identityID.String())
		}
		return identity.Identity{}, autherr.Internal(err)
	}
	return ident, nil
}

// recordLoginFailure bumps the failed-attempt counter and locks the account
// when the threshold is crossed. Counter writes go through the versioned
// Save, so concurrent failures cannot both observe the pre-lockout count.
// Errors are logged, not returned: the caller's INVALID_CREDENTIALS stands
// regardless.
func (s *Service) recordLoginFailure(ctx context.Context, ident identity.Identity) identity.Identity {
	now := time.Now().UTC()
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		if ident.Locked(now) {
			return ident
		}
		ident.FailedAttempts++
		crossed := false
		if ident.FailedAttempts >= s.config.LockoutThreshold && !ident.Locked(now) {
			until := now.Add(s.config.LockoutWindow)
			ident.LockedUntil = &until
			crossed = true
		}

		saved, err := s.identities.Save(ctx, ident)
		if err == nil {
			if crossed {
				slog.Warn("Account locked after repeated failures",
					"identityID", saved.ID, "attempts", saved.FailedAttempts, "until", saved.LockedUntil)
				s.notifyAccountLocked(saved)
			}
			return saved
		}
		if err != identity.ErrVersionConflict {
			slog.Error("Failed to record login failure", "identityID", ident.ID, "err", err)
			return ident
		}
		fresh, ferr := s.identities.FindByID(ctx, ident.ID)
		if ferr != nil {
			slog.Error("Failed to reload identity after version conflict", "identityID", ident.ID, "err", ferr)
			return ident
		}
		ident = fresh
	}
	slog.Error("Gave up recording login failure after version conflicts", "identityID", ident.ID)
	return ident
}

// finishLogin clears the failure counter and lockout after full
// authentication, upgrading the stored hash when the scheme is outdated.
// The plaintext is only needed for that rehash and may be empty.
func (s *Service) finishLogin(ctx context.Context, ident identity.Identity, plaintext string) identity.Identity {
	newHash := ""
	newVersion := 0
	if plaintext != "" && s.passwords.NeedsRehash(passwordVersion(ident)) {
		hash, version, err := s.passwords.Hash(plaintext)
		if err != nil {
			slog.Error("Failed to rehash password", "identityID", ident.ID, "err", err)
		} else {
			newHash = hash
			newVersion = int(version)
		}
	}

	if ident.FailedAttempts == 0 && ident.LockedUntil == nil && newHash == "" {
		return ident
	}

	saved, err := s.saveWithRetry(ctx, ident, func(i *identity.Identity) {
		i.FailedAttempts = 0
		i.LockedUntil = nil
		if newHash != "" {
			i.PasswordHash = newHash
			i.PasswordVersion = newVersion
		}
	})
	if err != nil {
		slog.Error("Failed to reset login state", "identityID", ident.ID, "err", err)
		return ident
	}
	return saved
}

// saveWithRetry applies mutate and saves, re-reading and re-applying on
// version conflicts
func (s *Service) saveWithRetry(ctx context.Context, ident identity.Identity, mutate func(*identity.Identity)) (identity.Identity, error) {
	for attempt := 0; ; attempt++ {
		mutate(&ident)
		saved, err := s.identities.Save(ctx, ident)
		if err == nil {
			return saved, nil
		}
		if err != identity.ErrVersionConflict || attempt >= maxSaveRetries {
			return identity.Identity{}, err
		}
		fresh, ferr := s.identities.FindByID(ctx, ident.ID)
		if ferr != nil {
			return identity.Identity{}, ferr
		}
		ident = fresh
	}
}

func (s *Service) sendVerificationEmail(ctx context.Context, ident identity.Identity) {
	verifyToken, _, err := s.issuer.IssueEmailVerification(ctx, ident.ID)
	if err != nil {
		slog.Error("Failed to issue verification token", "identityID", ident.ID, "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.VerificationRequested(ctx, ident.Email, ident.Name, verifyToken); err != nil {
			slog.Error("Failed to send verification email", "email", ident.Email, "err", err)
		}
	}()
}

func (s *Service) notifyAccountLocked(ident identity.Identity) {
	until := time.Now().UTC()
	if ident.LockedUntil != nil {
		until = *ident.LockedUntil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.AccountLocked(ctx, ident.Email, ident.Name, until); err != nil {
			slog.Error("Failed to send account locked email", "email", ident.Email, "err", err)
		}
	}()
}

func (s *Service) notifyPasswordChanged(ident identity.Identity) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.PasswordChanged(ctx, ident.Email, ident.Name); err != nil {
			slog.Error("Failed to send password changed email", "email", ident.Email, "err", err)
		}
	}()
}

func passwordVersion(ident identity.Identity) password.Version {
	return password.Version(ident.PasswordVersion)
}
