// Package api is the HTTP boundary of the auth service. Handlers decode
// JSON requests, call the login service, and map structured errors to
// status codes. Transport is bearer-token only; no cookies are set.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	autherr "github.com/workhive/auth/pkg/errors"
	"github.com/workhive/auth/pkg/login"
	"github.com/workhive/auth/pkg/provider"
	"github.com/workhive/auth/pkg/session"
	"github.com/workhive/auth/pkg/token"
)

// Handler exposes the login service over HTTP
type Handler struct {
	service *login.Service
}

// NewHandler creates an auth API handler
func NewHandler(service *login.Service) *Handler {
	return &Handler{service: service}
}

// Signup handles POST /signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, r, autherr.InvalidInput("request body", "email and password are required"))
		return
	}

	result, err := h.service.Signup(r.Context(), login.SignupParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := SignupResponse{RequiresVerification: result.RequiresVerification}
	copier.Copy(&resp.Identity, &result.Identity)
	resp.Tokens = tokenPairResponse(result.Tokens)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, r, autherr.InvalidInput("request body", "email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, loginResponse(result))
}

// VerifyTwoFactor handles POST /2fa/verify
func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req TwoFactorVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		respondError(w, r, autherr.InvalidInput("request body", "challenge_token and code are required"))
		return
	}

	result, err := h.service.VerifyTwoFactor(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, loginResponse(result))
}

// OAuthLogin handles POST /oauth/login
func (h *Handler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req OAuthLoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.OAuthLogin(r.Context(), provider.Profile{
		Provider:      req.Provider,
		Subject:       req.Subject,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		Name:          req.Name,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, loginResponse(result))
}

// Refresh handles POST /refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		respondError(w, r, autherr.InvalidInput("request body", "refresh_token is required"))
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, tokenPairResponse(pair))
}

// Logout handles POST /logout. The body is optional; the access token falls
// back to the Authorization header.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("Failed to decode request body", "path", r.URL.Path, "err", err)
		respondError(w, r, autherr.InvalidInput("request body", "malformed JSON"))
		return
	}

	accessToken := req.AccessToken
	if accessToken == "" {
		accessToken = jwtauth.TokenFromHeader(r)
	}

	if err := h.service.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "logged out"})
}

// VerifyEmail handles POST /email/verify
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, r, autherr.InvalidInput("request body", "token is required"))
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyEmailResponse{
		Message:    "Email verified successfully",
		VerifiedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetMe handles GET /me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, autherr.InvalidOrExpiredToken())
		return
	}

	ident, err := h.service.GetMe(r.Context(), principal.IdentityID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := IdentityResponse{}
	copier.Copy(&resp, &ident)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// EnableTwoFactor handles POST /2fa/enable
func (h *Handler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, autherr.InvalidOrExpiredToken())
		return
	}

	setup, err := h.service.EnableTwoFactor(r.Context(), principal.IdentityID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := TwoFactorSetupResponse{}
	copier.Copy(&resp, setup)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// VerifyTwoFactorSetup handles POST /2fa/setup/verify
func (h *Handler) VerifyTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, autherr.InvalidOrExpiredToken())
		return
	}

	var req TwoFactorSetupVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, r, autherr.InvalidInput("request body", "code is required"))
		return
	}

	if err := h.service.VerifyTwoFactorSetup(r.Context(), principal.IdentityID, req.Code); err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "two-factor authentication enabled"})
}

// DisableTwoFactor handles POST /2fa/disable
func (h *Handler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, autherr.InvalidOrExpiredToken())
		return
	}

	var req TwoFactorDisableRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondError(w, r, autherr.InvalidInput("request body", "password is required"))
		return
	}

	if err := h.service.DisableTwoFactor(r.Context(), principal.IdentityID, req.Password); err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "two-factor authentication disabled"})
}

// ChangePassword handles POST /password/change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, autherr.InvalidOrExpiredToken())
		return
	}

	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondError(w, r, autherr.InvalidInput("request body", "current_password and new_password are required"))
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal.IdentityID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "password changed"})
}

func loginResponse(result *login.LoginResult) LoginResponse {
	resp := LoginResponse{TwoFactorRequired: result.TwoFactorRequired}
	if result.TwoFactorRequired {
		resp.ChallengeToken = result.ChallengeToken
		expiresAt := result.ChallengeExpiresAt
		resp.ChallengeExpiresAt = &expiresAt
		return resp
	}

	ident := IdentityResponse{}
	copier.Copy(&ident, &result.Identity)
	resp.Identity = &ident
	resp.Tokens = tokenPairResponse(result.Tokens)
	return resp
}

func tokenPairResponse(pair *token.TokenPair) *TokenPairResponse {
	if pair == nil {
		return nil
	}
	resp := &TokenPairResponse{}
	copier.Copy(resp, pair)
	return resp
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Failed to decode request body", "path", r.URL.Path, "err", err)
		respondError(w, r, autherr.InvalidInput("request body", "malformed JSON"))
		return false
	}
	return true
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *autherr.Error
	if !errors.As(err, &authErr) {
		slog.Error("Unstructured error reached the API boundary", "path", r.URL.Path, "err", err)
		authErr = autherr.Internal(err)
	}

	render.Status(r, authErr.HTTPStatusCode())
	render.JSON(w, r, ErrorResponse{
		Code:    string(authErr.Code),
		Message: authErr.Message,
		Details: authErr.Details,
	})
}
