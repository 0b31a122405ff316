package api

import (
	"time"

	"github.com/google/uuid"
)

// SignupRequest represents the request to create a password identity
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest represents the request to authenticate with email and password
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TwoFactorVerifyRequest completes a login that required a TOTP code
type TwoFactorVerifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// OAuthLoginRequest carries a provider profile already verified by the
// upstream OAuth callback handler
type OAuthLoginRequest struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
}

// RefreshRequest represents the request to rotate a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest carries the tokens to revoke. The access token may also be
// supplied via the Authorization header.
type LogoutRequest struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// VerifyEmailRequest represents the request to verify an email address
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// TwoFactorSetupVerifyRequest confirms a pending TOTP enrollment
type TwoFactorSetupVerifyRequest struct {
	Code string `json:"code"`
}

// TwoFactorDisableRequest represents the request to turn off TOTP
type TwoFactorDisableRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest represents the request to change the password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// IdentityResponse is the public view of an identity
type IdentityResponse struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// TokenPairResponse carries an access/refresh token pair
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SignupResponse represents the response after signup
type SignupResponse struct {
	Identity             IdentityResponse   `json:"identity"`
	Tokens               *TokenPairResponse `json:"tokens,omitempty"`
	RequiresVerification bool               `json:"requires_verification"`
}

// LoginResponse represents the response after a login attempt. When
// TwoFactorRequired is set only the challenge fields are populated.
type LoginResponse struct {
	TwoFactorRequired  bool               `json:"two_factor_required"`
	ChallengeToken     string             `json:"challenge_token,omitempty"`
	ChallengeExpiresAt *time.Time         `json:"challenge_expires_at,omitempty"`
	Identity           *IdentityResponse  `json:"identity,omitempty"`
	Tokens             *TokenPairResponse `json:"tokens,omitempty"`
}

// TwoFactorSetupResponse carries the TOTP enrollment material
type TwoFactorSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// VerifyEmailResponse represents the response after email verification
type VerifyEmailResponse struct {
	Message    string `json:"message"`
	VerifiedAt string `json:"verified_at"`
}

// MessageResponse is a generic success response
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
