package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/workhive/auth/pkg/session"
)

// Routes returns the public auth endpoints
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/2fa/verify", h.VerifyTwoFactor)
	r.Post("/oauth/login", h.OAuthLogin)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/email/verify", h.VerifyEmail)
	return r
}

// ProtectedRoutes returns the endpoints that require a valid access token
func ProtectedRoutes(h *Handler, validator *session.Validator) chi.Router {
	r := chi.NewRouter()
	r.Use(session.Middleware(validator))
	r.Get("/me", h.GetMe)
	r.Post("/2fa/enable", h.EnableTwoFactor)
	r.Post("/2fa/setup/verify", h.VerifyTwoFactorSetup)
	r.Post("/2fa/disable", h.DisableTwoFactor)
	r.Post("/password/change", h.ChangePassword)
	return r
}
