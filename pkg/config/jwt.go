package config

import (
	"fmt"
	"time"

	"github.com/workhive/auth/pkg/token"
)

// JWTConfig holds JWT signing and lifetime configuration.
//
// Secret has no default: a service signing tokens with a guessable secret
// is worse than one that refuses to start.
type JWTConfig struct {
	Secret   string `env:"JWT_SECRET"`
	Issuer   string `env:"JWT_ISSUER" env-default:"workhive-auth"`
	Audience string `env:"JWT_AUDIENCE" env-default:"workhive"`

	AccessTokenExpiry       time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry      time.Duration `env:"REFRESH_TOKEN_EXPIRY" env-default:"720h"`
	ChallengeTokenExpiry    time.Duration `env:"CHALLENGE_TOKEN_EXPIRY" env-default:"5m"`
	EmailVerificationExpiry time.Duration `env:"EMAIL_VERIFICATION_EXPIRY" env-default:"24h"`
}

// Validate checks that the config can run a token issuer
func (j JWTConfig) Validate() error {
	if j.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if j.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be positive, got %v", j.AccessTokenExpiry)
	}
	if j.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRY must be positive, got %v", j.RefreshTokenExpiry)
	}
	if j.ChallengeTokenExpiry <= 0 {
		return fmt.Errorf("CHALLENGE_TOKEN_EXPIRY must be positive, got %v", j.ChallengeTokenExpiry)
	}
	if j.EmailVerificationExpiry <= 0 {
		return fmt.Errorf("EMAIL_VERIFICATION_EXPIRY must be positive, got %v", j.EmailVerificationExpiry)
	}
	return nil
}

// ToIssuerOptions converts the lifetimes to token.Issuer options
func (j JWTConfig) ToIssuerOptions() []token.Option {
	return []token.Option{
		token.WithAccessTokenExpiry(j.AccessTokenExpiry),
		token.WithRefreshTokenExpiry(j.RefreshTokenExpiry),
		token.WithChallengeTokenExpiry(j.ChallengeTokenExpiry),
		token.WithEmailVerificationExpiry(j.EmailVerificationExpiry),
	}
}
