package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	autherr "github.com/workhive/auth/pkg/errors"
)

// Config holds rate limiting middleware configuration
type Config struct {
	// Burst is the number of requests a single IP may make back to back
	Burst int `json:"burst"` // default: 10
	// RefillRate is how many requests per second an IP regains
	RefillRate float64 `json:"refill_rate"` // default: 0.5 (30 per minute)
	// BucketTTL is how long an idle IP keeps its bucket before the sweep
	// drops it
	BucketTTL time.Duration `json:"bucket_ttl"` // default: 10m
}

// DefaultConfig returns rate limiting defaults sized for the login and
// signup endpoints
func DefaultConfig() *Config {
	return &Config{
		Burst:      10,
		RefillRate: 0.5,
		BucketTTL:  10 * time.Minute,
	}
}

// Middleware limits requests per client IP
type Middleware struct {
	limiter    *Limiter
	retryAfter string
}

// NewMiddleware creates rate limiting middleware from the given config,
// falling back to defaults for zero values
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.RefillRate <= 0 {
		config.RefillRate = defaults.RefillRate
	}
	if config.BucketTTL <= 0 {
		config.BucketTTL = defaults.BucketTTL
	}

	// Seconds until a drained bucket holds one token again
	retryAfter := int(math.Ceil(1.0 / config.RefillRate))
	if retryAfter < 1 {
		retryAfter = 1
	}

	slog.Info("Rate limiter configured",
		"burst", config.Burst,
		"refillRate", config.RefillRate,
		"bucketTTL", config.BucketTTL)

	return &Middleware{
		limiter:    NewLimiter(config.Burst, config.RefillRate, config.BucketTTL),
		retryAfter: fmt.Sprintf("%d", retryAfter),
	}
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if !m.limiter.Allow(clientIP) {
			m.rateLimitExceeded(w, r, clientIP)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, clientIP string) {
	slog.Warn("Rate limit exceeded",
		"ip", clientIP,
		"path", r.URL.Path,
		"method", r.Method)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", m.retryAfter)
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"code":%q,"message":"too many requests, slow down"}`, autherr.ErrCodeRateLimitExceeded)
}

// getClientIP extracts the client IP address from the request, preferring
// proxy headers over the socket address
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may hold a chain; the first entry is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
