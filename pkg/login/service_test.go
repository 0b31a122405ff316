package login

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/identity"
	"github.com/workhive/auth/pkg/password"
	"github.com/workhive/auth/pkg/revocation"
	"github.com/workhive/auth/pkg/token"
)

const testPassword = "tr0ub4dor-and-more"

// recordingNotifier captures notifications so tests can read the tokens the
// service sends out of band
type recordingNotifier struct {
	verificationTokens chan string
	passwordChanges    chan string
	lockouts           chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		verificationTokens: make(chan string, 8),
		passwordChanges:    make(chan string, 8),
		lockouts:           make(chan string, 8),
	}
}

func (r *recordingNotifier) VerificationRequested(_ context.Context, _, _, token string) error {
	r.verificationTokens <- token
	return nil
}

func (r *recordingNotifier) PasswordChanged(_ context.Context, email, _ string) error {
	r.passwordChanges <- email
	return nil
}

func (r *recordingNotifier) AccountLocked(_ context.Context, email, _ string, _ time.Time) error {
	r.lockouts <- email
	return nil
}

func waitFor(t *testing.T, ch chan string, what string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

type testEnv struct {
	service    *Service
	identities *identity.InMemoryRepository
	generator  *token.JWTGenerator
	registry   *revocation.MemoryRegistry
	notifier   *recordingNotifier
}

func newTestEnv(t *testing.T, config Config, opts ...Option) *testEnv {
	t.Helper()
	identities := identity.NewInMemoryRepository()
	generator, err := token.NewJWTGenerator("test-secret", "workhive", "workhive-api")
	require.NoError(t, err)
	registry := revocation.NewMemoryRegistry()
	issuer := token.NewIssuer(generator, token.NewInMemoryFamilyStore(), registry)
	notifier := newRecordingNotifier()

	opts = append([]Option{WithNotifier(notifier)}, opts...)
	service, err := NewServiceWithConfig(identities, issuer, generator, registry, config, opts...)
	require.NoError(t, err)

	return &testEnv{
		service:    service,
		identities: identities,
		generator:  generator,
		registry:   registry,
		notifier:   notifier,
	}
}

func signup(t *testing.T, env *testEnv, email string) *SignupResult {
	t.Helper()
	result, err := env.service.Signup(context.Background(), SignupParams{
		Email:    email,
		Password: testPassword,
		Name:     "Alice",
	})
	require.NoError(t, err)
	return result
}

func TestNewServiceWithConfig_RejectsBadConfig(t *testing.T) {
	identities := identity.NewInMemoryRepository()
	generator, err := token.NewJWTGenerator("test-secret", "workhive", "workhive-api")
	require.NoError(t, err)
	registry := revocation.NewMemoryRegistry()
	issuer := token.NewIssuer(generator, token.NewInMemoryFamilyStore(), registry)

	_, err = NewServiceWithConfig(identities, issuer, generator, registry, Config{})
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeConfiguration))
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	result, err := env.service.Signup(ctx, SignupParams{
		Email:    "Alice@X.com",
		Password: testPassword,
		Name:     "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", result.Identity.Email)
	assert.True(t, result.RequiresVerification)
	require.NotNil(t, result.Tokens)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	// The verification email carries a parseable single-use token
	verifyToken := waitFor(t, env.notifier.verificationTokens, "verification token")
	claims, err := env.generator.Parse(verifyToken)
	require.NoError(t, err)
	assert.Equal(t, token.UseEmailVerification, claims.Use)

	_, err = env.service.Signup(ctx, SignupParams{
		Email:    "ALICE@x.com",
		Password: testPassword,
		Name:     "Imposter",
	})
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeDuplicateIdentity))
}

func TestSignup_RejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	_, err := env.service.Signup(context.Background(), SignupParams{
		Email:    "bob@x.com",
		Password: "short",
		Name:     "Bob",
	})
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodePasswordPolicy))

	_, err = env.service.Signup(context.Background(), SignupParams{
		Email:    "",
		Password: testPassword,
	})
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidInput))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	signup(t, env, "alice@x.com")

	result, err := env.service.Login(ctx, "ALICE@x.com", testPassword)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	require.NotNil(t, result.Tokens)

	claims, err := env.generator.Parse(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, token.UseAccess, claims.Use)
	assert.Equal(t, ProviderPassword, claims.Provider)
	assert.Equal(t, result.Identity.ID.String(), claims.Subject)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	signup(t, env, "alice@x.com")

	_, err := env.service.Login(ctx, "nobody@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))

	_, err = env.service.Login(ctx, "alice@x.com", "wrong-password-1")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))
}

func TestLogin_OAuthOnlyIdentity(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	_, err := env.identities.Create(ctx, identity.Identity{
		Email:         "carol@x.com",
		Name:          "Carol",
		EmailVerified: true,
		Providers: []identity.ProviderLink{
			{Provider: "google", Subject: "g-1", LinkedAt: time.Now()},
		},
	})
	require.NoError(t, err)

	_, err = env.service.Login(ctx, "carol@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	config := DefaultConfig()
	config.LockoutThreshold = 3
	config.LockoutWindow = 30 * time.Minute
	env := newTestEnv(t, config)
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	// Every failing attempt up to the threshold reports invalid credentials
	for i := 0; i < 3; i++ {
		_, err := env.service.Login(ctx, "alice@x.com", "wrong-password-1")
		require.Error(t, err)
		assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials), "attempt %d", i+1)
	}

	// The next attempt is rejected outright, correct password or not
	_, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeAccountLocked))
	assert.NotNil(t, autherr.GetDetails(err)["locked_until"])

	// Rejected-while-locked attempts do not consume further increments
	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FailedAttempts)

	waitFor(t, env.notifier.lockouts, "lockout notification")
}

func TestLogin_LockoutExpires(t *testing.T) {
	config := DefaultConfig()
	config.LockoutThreshold = 2
	config.LockoutWindow = 100 * time.Millisecond
	env := newTestEnv(t, config)
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	for i := 0; i < 2; i++ {
		_, err := env.service.Login(ctx, "alice@x.com", "wrong-password-1")
		require.Error(t, err)
	}
	_, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeAccountLocked))

	time.Sleep(150 * time.Millisecond)

	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)

	// A successful post-window login resets the counter and the lock
	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	for i := 0; i < 2; i++ {
		_, err := env.service.Login(ctx, "alice@x.com", "wrong-password-1")
		require.Error(t, err)
	}
	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FailedAttempts)

	_, err = env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	stored, err = env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedAttempts)
}

func TestLogin_RequireVerifiedEmail(t *testing.T) {
	config := DefaultConfig()
	config.RequireVerifiedEmail = true
	env := newTestEnv(t, config)
	ctx := context.Background()
	signup(t, env, "alice@x.com")

	_, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeEmailNotVerified))

	verifyToken := waitFor(t, env.notifier.verificationTokens, "verification token")
	require.NoError(t, env.service.VerifyEmail(ctx, verifyToken))

	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	legacyHash, err := password.NewBcryptHasher().Hash(testPassword)
	require.NoError(t, err)
	created, err := env.identities.Create(ctx, identity.Identity{
		Email:           "legacy@x.com",
		PasswordHash:    legacyHash,
		PasswordVersion: int(password.V1),
	})
	require.NoError(t, err)

	_, err = env.service.Login(ctx, "legacy@x.com", testPassword)
	require.NoError(t, err)

	stored, err := env.identities.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int(password.CurrentVersion), stored.PasswordVersion)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	// The upgraded hash keeps working
	_, err = env.service.Login(ctx, "legacy@x.com", testPassword)
	require.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	rotated, err := env.service.Refresh(ctx, created.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, created.Tokens.RefreshToken, rotated.RefreshToken)

	// Reusing the old refresh token is replay and kills the family
	_, err = env.service.Refresh(ctx, created.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeTokenReplayDetected))

	_, err = env.service.Refresh(ctx, rotated.RefreshToken)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	require.NoError(t, env.service.Logout(ctx, created.Tokens.AccessToken, created.Tokens.RefreshToken))

	// A logged-out refresh token cannot rotate
	_, err := env.service.Refresh(ctx, created.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))

	// Repeated logout is a no-op, as is logging out garbage
	require.NoError(t, env.service.Logout(ctx, created.Tokens.AccessToken, created.Tokens.RefreshToken))
	require.NoError(t, env.service.Logout(ctx, "garbage", ""))
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")
	verifyToken := waitFor(t, env.notifier.verificationTokens, "verification token")

	require.NoError(t, env.service.VerifyEmail(ctx, verifyToken))

	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	// Single use
	err = env.service.VerifyEmail(ctx, verifyToken)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))
}

func TestVerifyEmail_RejectsWrongTokenUse(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	err := env.service.VerifyEmail(ctx, created.Tokens.AccessToken)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))

	err = env.service.VerifyEmail(ctx, "garbage")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	ident, err := env.service.GetMe(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", ident.Email)

	_, err = env.service.GetMe(ctx, created.Identity.ID)
	require.NoError(t, err)

	_, err = env.service.GetMe(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeIdentityNotFound))
}
