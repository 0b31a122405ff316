package config

import (
	"github.com/workhive/auth/pkg/revocation"
)

// RedisConfig holds connection settings for the Redis revocation registry
type RedisConfig struct {
	Host     string `env:"AUTH_REDIS_HOST" env-default:"localhost"`
	Port     int    `env:"AUTH_REDIS_PORT" env-default:"6379"`
	Password string `env:"AUTH_REDIS_PASSWORD" env-default:""`
	DB       int    `env:"AUTH_REDIS_DB" env-default:"0"`
	Prefix   string `env:"AUTH_REDIS_PREFIX" env-default:"workhive:auth"`
}

// ToRegistryConfig converts the config to a revocation.RedisConfig
func (r RedisConfig) ToRegistryConfig() revocation.RedisConfig {
	return revocation.RedisConfig{
		Host:     r.Host,
		Port:     r.Port,
		Password: r.Password,
		DB:       r.DB,
		Prefix:   r.Prefix,
	}
}
