package config

import (
	"time"

	"github.com/workhive/auth/pkg/login"
)

// LoginConfig holds login behavior settings
type LoginConfig struct {
	LockoutThreshold     int           `env:"AUTH_LOCKOUT_THRESHOLD" env-default:"5"`
	LockoutWindow        time.Duration `env:"AUTH_LOCKOUT_WINDOW" env-default:"30m"`
	TOTPSkewSteps        uint          `env:"AUTH_TOTP_SKEW_STEPS" env-default:"1"`
	TwoFactorIssuer      string        `env:"AUTH_TWO_FACTOR_ISSUER" env-default:"Workhive"`
	RequireVerifiedEmail bool          `env:"AUTH_REQUIRE_VERIFIED_EMAIL" env-default:"false"`
}

// ToServiceConfig converts the config to a login.Config
func (l LoginConfig) ToServiceConfig() login.Config {
	return login.Config{
		LockoutThreshold:     l.LockoutThreshold,
		LockoutWindow:        l.LockoutWindow,
		TOTPSkewSteps:        l.TOTPSkewSteps,
		TwoFactorIssuer:      l.TwoFactorIssuer,
		RequireVerifiedEmail: l.RequireVerifiedEmail,
	}
}
