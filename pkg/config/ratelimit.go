package config

import (
	"time"

	"github.com/workhive/auth/pkg/ratelimit"
)

// RateLimitConfig holds the per-IP throttle settings for the public auth
// endpoints
type RateLimitConfig struct {
	Enabled    bool          `env:"AUTH_RATELIMIT_ENABLED" env-default:"true"`
	Burst      int           `env:"AUTH_RATELIMIT_BURST" env-default:"10"`
	RefillRate float64       `env:"AUTH_RATELIMIT_REFILL_RATE" env-default:"0.5"` // 30 per minute
	BucketTTL  time.Duration `env:"AUTH_RATELIMIT_BUCKET_TTL" env-default:"10m"`
}

// ToMiddlewareConfig converts the config to a ratelimit.Config
func (r RateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	return &ratelimit.Config{
		Burst:      r.Burst,
		RefillRate: r.RefillRate,
		BucketTTL:  r.BucketTTL,
	}
}
