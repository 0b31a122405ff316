package login

import (
	"fmt"
	"time"

	"github.com/workhive/auth/pkg/notify"
	"github.com/workhive/auth/pkg/password"
	"github.com/workhive/auth/pkg/provider"
	"github.com/workhive/auth/pkg/totp"
)

// Config holds configuration for the login Service
// Use this struct for environment-based configuration or programmatic setup
type Config struct {
	// Account Lockout Settings
	LockoutThreshold int           `json:"lockout_threshold"` // Failed attempts before lockout (default: 5)
	LockoutWindow    time.Duration `json:"lockout_window"`    // How long a lockout lasts (default: 30m)

	// Two-Factor Settings
	TOTPSkewSteps   uint   `json:"totp_skew_steps"`   // Accepted TOTP periods either side of now (default: 1)
	TwoFactorIssuer string `json:"two_factor_issuer"` // Issuer shown in authenticator apps (default: Workhive)

	// RequireVerifiedEmail refuses password logins until the email address
	// has been verified (default: false)
	RequireVerifiedEmail bool `json:"require_verified_email"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		LockoutThreshold: 5,
		LockoutWindow:    30 * time.Minute,
		TOTPSkewSteps:    totp.DefaultSkew,
		TwoFactorIssuer:  "Workhive",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.LockoutThreshold < 1 {
		return fmt.Errorf("lockout_threshold must be at least 1, got %d", c.LockoutThreshold)
	}
	if c.LockoutWindow <= 0 {
		return fmt.Errorf("lockout_window must be positive, got %v", c.LockoutWindow)
	}
	if c.TwoFactorIssuer == "" {
		return fmt.Errorf("two_factor_issuer must not be empty")
	}
	return nil
}

// Option configures a Service
type Option func(*Service)

// WithPasswordManager overrides the default password manager
func WithPasswordManager(manager *password.Manager) Option {
	return func(s *Service) {
		if manager != nil {
			s.passwords = manager
		}
	}
}

// WithPasswordPolicy overrides the default password policy
func WithPasswordPolicy(policy *password.Policy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithTOTPVerifier overrides the verifier built from Config.TOTPSkewSteps
func WithTOTPVerifier(verifier *totp.Verifier) Option {
	return func(s *Service) {
		if verifier != nil {
			s.totp = verifier
		}
	}
}

// WithProviderRegistry sets the accepted external OAuth providers
func WithProviderRegistry(registry *provider.Registry) Option {
	return func(s *Service) {
		if registry != nil {
			s.providers = registry
		}
	}
}

// WithNotifier sets the outbound email notifier
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}
