package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/auth/pkg/identity"
	"github.com/workhive/auth/pkg/login"
	"github.com/workhive/auth/pkg/provider"
	"github.com/workhive/auth/pkg/revocation"
	"github.com/workhive/auth/pkg/session"
	"github.com/workhive/auth/pkg/token"
	"github.com/workhive/auth/pkg/totp"
)

const testPassword = "tr0ub4dor-and-more"

type apiEnv struct {
	router     chi.Router
	service    *login.Service
	identities *identity.InMemoryRepository
	generator  *token.JWTGenerator
}

func newAPIEnv(t *testing.T, opts ...login.Option) *apiEnv {
	t.Helper()

	identities := identity.NewInMemoryRepository()
	registry := revocation.NewMemoryRegistry()
	generator, err := token.NewJWTGenerator("api-test-secret", "workhive-auth", "workhive")
	require.NoError(t, err)
	issuer := token.NewIssuer(generator, token.NewInMemoryFamilyStore(), registry)

	service, err := login.NewServiceWithConfig(identities, issuer, generator, registry, login.DefaultConfig(), opts...)
	require.NoError(t, err)

	handler := NewHandler(service)
	validator := session.NewValidator(generator, registry, identities)

	router := chi.NewRouter()
	router.Mount("/auth", Routes(handler))
	router.Mount("/", ProtectedRoutes(handler, validator))

	return &apiEnv{
		router:     router,
		service:    service,
		identities: identities,
		generator:  generator,
	}
}

func (env *apiEnv) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (env *apiEnv) signup(t *testing.T, email string) SignupResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{
		Email:    email,
		Password: testPassword,
		Name:     "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decodeBody[SignupResponse](t, rec)
}

func TestSignupEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.signup(t, "Rosa@Workhive.IO")
	assert.Equal(t, "rosa@workhive.io", resp.Identity.Email)
	assert.True(t, resp.RequiresVerification)
	require.NotNil(t, resp.Tokens)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	rec := env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{
		Email:    "rosa@workhive.io",
		Password: testPassword,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_IDENTITY", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSignupEndpoint_BadRequests(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Email: "a@b.c"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{
		Email:    "a@b.c",
		Password: "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PASSWORD_POLICY_VIOLATION", decodeBody[ErrorResponse](t, rec).Code)
}

func TestLoginEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.signup(t, "kim@workhive.io")

	rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "kim@workhive.io",
		Password: testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	resp := decodeBody[LoginResponse](t, rec)
	assert.False(t, resp.TwoFactorRequired)
	require.NotNil(t, resp.Tokens)
	require.NotNil(t, resp.Identity)
	assert.Equal(t, "kim@workhive.io", resp.Identity.Email)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "kim@workhive.io",
		Password: "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeBody[ErrorResponse](t, rec).Code)
}

func TestLockedAccountIncludesUnlockTime(t *testing.T) {
	env := newAPIEnv(t)
	env.signup(t, "lou@workhive.io")

	for i := 0; i < login.DefaultConfig().LockoutThreshold; i++ {
		rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
			Email:    "lou@workhive.io",
			Password: "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "lou@workhive.io",
		Password: testPassword,
	})
	require.Equal(t, http.StatusLocked, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "ACCOUNT_LOCKED", resp.Code)
	assert.Contains(t, resp.Details, "locked_until")
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "ana@workhive.io")

	rec := env.do(t, http.MethodGet, "/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/me", signup.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "ana@workhive.io", decodeBody[IdentityResponse](t, rec).Email)
}

func TestRefreshEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "ben@workhive.io")

	rec := env.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{
		RefreshToken: signup.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rotated := decodeBody[TokenPairResponse](t, rec)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, signup.Tokens.RefreshToken, rotated.RefreshToken)

	// Replaying the original refresh token burns the whole family
	rec = env.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{
		RefreshToken: signup.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REPLAY_DETECTED", decodeBody[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{
		RefreshToken: rotated.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", decodeBody[ErrorResponse](t, rec).Code)
}

func TestLogoutEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "eve@workhive.io")

	// Bearer header only, empty body
	rec := env.do(t, http.MethodPost, "/auth/logout", signup.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/me", signup.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", decodeBody[ErrorResponse](t, rec).Code)

	// Logout is idempotent
	rec = env.do(t, http.MethodPost, "/auth/logout", "", LogoutRequest{
		AccessToken:  signup.Tokens.AccessToken,
		RefreshToken: signup.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "ira@workhive.io")
	require.True(t, signup.RequiresVerification)

	verifyToken, _, err := env.generator.Generate(
		signup.Identity.ID.String(), token.UseEmailVerification, time.Hour, "", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/auth/email/verify", "", VerifyEmailRequest{Token: verifyToken})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.NotEmpty(t, decodeBody[VerifyEmailResponse](t, rec).VerifiedAt)

	ident, err := env.identities.FindByID(context.Background(), signup.Identity.ID)
	require.NoError(t, err)
	assert.True(t, ident.EmailVerified)

	// Single use
	rec = env.do(t, http.MethodPost, "/auth/email/verify", "", VerifyEmailRequest{Token: verifyToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorFlowOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "mo@workhive.io")
	access := signup.Tokens.AccessToken

	rec := env.do(t, http.MethodPost, "/2fa/enable", access, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	setup := decodeBody[TwoFactorSetupResponse](t, rec)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "otpauth://")

	code, err := totp.NewVerifier(totp.DefaultSkew).GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/2fa/setup/verify", access, TwoFactorSetupVerifyRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	// Login now stops at the challenge
	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "mo@workhive.io",
		Password: testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	loginResp := decodeBody[LoginResponse](t, rec)
	require.True(t, loginResp.TwoFactorRequired)
	require.NotEmpty(t, loginResp.ChallengeToken)
	assert.Nil(t, loginResp.Tokens)

	code, err = totp.NewVerifier(totp.DefaultSkew).GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/auth/2fa/verify", "", TwoFactorVerifyRequest{
		ChallengeToken: loginResp.ChallengeToken,
		Code:           code,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	completed := decodeBody[LoginResponse](t, rec)
	require.NotNil(t, completed.Tokens)
	assert.NotEmpty(t, completed.Tokens.AccessToken)
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	signup := env.signup(t, "pat@workhive.io")

	const newPassword = "c0rrect-horse-battery"
	rec := env.do(t, http.MethodPost, "/password/change", signup.Tokens.AccessToken, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     newPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "pat@workhive.io",
		Password: testPassword,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "pat@workhive.io",
		Password: newPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOAuthLoginEndpoint(t *testing.T) {
	providers := provider.NewRegistry()
	require.NoError(t, providers.Register(provider.Provider{
		ID:       "google",
		ClientID: "client",
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
		Enabled:  true,
	}))
	env := newAPIEnv(t, login.WithProviderRegistry(providers))

	rec := env.do(t, http.MethodPost, "/auth/oauth/login", "", OAuthLoginRequest{
		Provider:      "google",
		Subject:       "g-777",
		Email:         "dana@workhive.io",
		EmailVerified: true,
		Name:          "Dana",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	resp := decodeBody[LoginResponse](t, rec)
	require.NotNil(t, resp.Tokens)
	require.NotNil(t, resp.Identity)
	assert.Equal(t, "dana@workhive.io", resp.Identity.Email)

	rec = env.do(t, http.MethodPost, "/auth/oauth/login", "", OAuthLoginRequest{
		Provider: "github",
		Subject:  "gh-1",
		Email:    "dana@workhive.io",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody[ErrorResponse](t, rec).Code)
}
