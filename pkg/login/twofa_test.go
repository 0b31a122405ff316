package login

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/totp"
)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.NewVerifier(totp.DefaultSkew).GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func wrongCode(correct string) string {
	if correct == "000000" {
		return "111111"
	}
	return "000000"
}

// enrollTwoFactor walks an identity through the full enrollment flow and
// returns the shared secret
func enrollTwoFactor(t *testing.T, env *testEnv, result *SignupResult) string {
	t.Helper()
	ctx := context.Background()

	setup, err := env.service.EnableTwoFactor(ctx, result.Identity.ID)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "otpauth://")

	require.NoError(t, env.service.VerifyTwoFactorSetup(ctx, result.Identity.ID, currentCode(t, setup.Secret)))
	return setup.Secret
}

func TestEnableTwoFactor_PendingUntilVerified(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	setup, err := env.service.EnableTwoFactor(ctx, created.Identity.ID)
	require.NoError(t, err)

	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, stored.TwoFactorSecret)
	assert.False(t, stored.TwoFactorEnabled)

	// Logins do not demand codes while enrollment is pending
	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	require.NotNil(t, result.Tokens)
}

func TestVerifyTwoFactorSetup(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	setup, err := env.service.EnableTwoFactor(ctx, created.Identity.ID)
	require.NoError(t, err)

	err = env.service.VerifyTwoFactorSetup(ctx, created.Identity.ID, wrongCode(currentCode(t, setup.Secret)))
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidTwoFactorCode))

	require.NoError(t, env.service.VerifyTwoFactorSetup(ctx, created.Identity.ID, currentCode(t, setup.Secret)))

	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)

	// Re-enabling or re-verifying afterwards is refused
	_, err = env.service.EnableTwoFactor(ctx, created.Identity.ID)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeTwoFactorAlreadyEnabled))

	err = env.service.VerifyTwoFactorSetup(ctx, created.Identity.ID, currentCode(t, setup.Secret))
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeTwoFactorAlreadyEnabled))
}

func TestVerifyTwoFactorSetup_NoPendingEnrollment(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	err := env.service.VerifyTwoFactorSetup(ctx, created.Identity.ID, "123456")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidInput))
}

func TestLogin_WithTwoFactor(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")
	secret := enrollTwoFactor(t, env, created)

	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	assert.True(t, result.TwoFactorRequired)
	assert.NotEmpty(t, result.ChallengeToken)
	assert.Nil(t, result.Tokens, "no access/refresh before the second factor")

	completed, err := env.service.VerifyTwoFactor(ctx, result.ChallengeToken, currentCode(t, secret))
	require.NoError(t, err)
	require.NotNil(t, completed.Tokens)
	assert.Equal(t, created.Identity.ID, completed.Identity.ID)

	// The challenge is single-use
	_, err = env.service.VerifyTwoFactor(ctx, result.ChallengeToken, currentCode(t, secret))
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))
}

func TestVerifyTwoFactor_WrongCodeCountsTowardLockout(t *testing.T) {
	config := DefaultConfig()
	config.LockoutThreshold = 2
	env := newTestEnv(t, config)
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")
	secret := enrollTwoFactor(t, env, created)

	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	bad := wrongCode(currentCode(t, secret))
	_, err = env.service.VerifyTwoFactor(ctx, result.ChallengeToken, bad)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidTwoFactorCode))

	_, err = env.service.VerifyTwoFactor(ctx, result.ChallengeToken, bad)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidTwoFactorCode))

	// Two failed codes crossed the threshold
	_, err = env.service.VerifyTwoFactor(ctx, result.ChallengeToken, currentCode(t, secret))
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeAccountLocked))

	_, err = env.service.Login(ctx, "alice@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeAccountLocked))
}

func TestVerifyTwoFactor_RejectsNonChallengeTokens(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")

	_, err := env.service.VerifyTwoFactor(ctx, created.Tokens.AccessToken, "123456")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))

	_, err = env.service.VerifyTwoFactor(ctx, "garbage", "123456")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidOrExpiredToken))
}

func TestDisableTwoFactor(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")
	enrollTwoFactor(t, env, created)

	err := env.service.DisableTwoFactor(ctx, created.Identity.ID, "wrong-password-1")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))

	before, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	require.True(t, before.TwoFactorEnabled)

	require.NoError(t, env.service.DisableTwoFactor(ctx, created.Identity.ID, testPassword))

	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.True(t, stored.PasswordChangedAt.After(before.PasswordChangedAt),
		"disabling the second factor is a credential change")

	// Subsequent logins are password-only again
	result, err := env.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)

	// Disabling again stays a no-op
	require.NoError(t, env.service.DisableTwoFactor(ctx, created.Identity.ID, testPassword))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	created := signup(t, env, "alice@x.com")
	const newPassword = "c0rrect-horse-battery"

	err := env.service.ChangePassword(ctx, created.Identity.ID, "wrong-password-1", newPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))

	err = env.service.ChangePassword(ctx, created.Identity.ID, testPassword, "short")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodePasswordPolicy))

	before, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)

	require.NoError(t, env.service.ChangePassword(ctx, created.Identity.ID, testPassword, newPassword))

	stored, err := env.identities.FindByID(ctx, created.Identity.ID)
	require.NoError(t, err)
	assert.True(t, stored.PasswordChangedAt.After(before.PasswordChangedAt))

	_, err = env.service.Login(ctx, "alice@x.com", testPassword)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))

	_, err = env.service.Login(ctx, "alice@x.com", newPassword)
	require.NoError(t, err)

	assert.Equal(t, "alice@x.com", waitFor(t, env.notifier.passwordChanges, "password changed notification"))
}
