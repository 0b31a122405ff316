package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(env *validatorEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(Middleware(env.validator))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "no principal", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(principal.Email))
		})
	})
	return r
}

func TestMiddleware_AllowsValidToken(t *testing.T) {
	env := newValidatorEnv(t)
	ident := env.createIdentity(t, "alice@x.com")
	pair, err := env.issuer.Issue(context.Background(), ident.ID, "password")
	require.NoError(t, err)

	router := newProtectedRouter(env)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@x.com", rec.Body.String())
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	env := newValidatorEnv(t)
	router := newProtectedRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", body.Code)
}

func TestMiddleware_RejectsRevokedToken(t *testing.T) {
	env := newValidatorEnv(t)
	ctx := context.Background()
	ident := env.createIdentity(t, "alice@x.com")
	pair, err := env.issuer.Issue(ctx, ident.ID, "password")
	require.NoError(t, err)

	claims, err := env.generator.Parse(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.registry.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

	router := newProtectedRouter(env)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TOKEN_REVOKED", body.Code)
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
