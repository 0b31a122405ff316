package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis registry backend
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// RedisRegistry implements Registry over Redis so revocations are shared
// across server instances. Redis key TTLs are the purge mechanism.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry connects to Redis and verifies the connection
func NewRedisRegistry(cfg RedisConfig) (*RedisRegistry, error) {
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("revocation: redis ping failed: %w", err)
	}

	return &RedisRegistry{
		client: rdb,
		prefix: cfg.Prefix,
	}, nil
}

func (r *RedisRegistry) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// Revoke implements Registry.Revoke
func (r *RedisRegistry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return r.set(ctx, tokenPrefix+tokenID, expiresAt)
}

// RevokeFamily implements Registry.RevokeFamily
func (r *RedisRegistry) RevokeFamily(ctx context.Context, familyID string, expiresAt time.Time) error {
	return r.set(ctx, familyPrefix+familyID, expiresAt)
}

// IsRevoked implements Registry.IsRevoked
func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.exists(ctx, tokenPrefix+tokenID)
}

// IsFamilyRevoked implements Registry.IsFamilyRevoked
func (r *RedisRegistry) IsFamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	return r.exists(ctx, familyPrefix+familyID)
}

func (r *RedisRegistry) set(ctx context.Context, key string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(key), "1", ttl).Err()
}

func (r *RedisRegistry) exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
