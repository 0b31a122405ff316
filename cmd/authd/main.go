package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/workhive/auth/pkg/api"
	"github.com/workhive/auth/pkg/config"
	"github.com/workhive/auth/pkg/identity"
	"github.com/workhive/auth/pkg/login"
	"github.com/workhive/auth/pkg/notify"
	"github.com/workhive/auth/pkg/ratelimit"
	"github.com/workhive/auth/pkg/revocation"
	"github.com/workhive/auth/pkg/session"
	"github.com/workhive/auth/pkg/token"
)

type Config struct {
	// Persistence selects the identity and token family stores: postgres | memory
	Persistence string `env:"AUTH_PERSISTENCE" env-default:"postgres"`
	// Revocation selects the revocation registry backend: redis | memory
	Revocation string `env:"AUTH_REVOCATION" env-default:"memory"`

	Database  config.DatabaseConfig
	Redis     config.RedisConfig
	AppConfig app.AppConfig
	JWT       config.JWTConfig
	Login     config.LoginConfig
	Email     config.EmailConfig
	RateLimit config.RateLimitConfig
	Providers config.ProviderConfig
}

// loadEnvFile loads environment variables from a .env file next to the
// binary or in the working directory. Variables already set in the
// environment win.
func loadEnvFile() {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	for _, envFile := range candidates {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			slog.Error("Failed to load .env file", "path", envFile, "err", err)
			return
		}
		slog.Info("Configuration loaded from .env file", "path", envFile)
		return
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	if err := cfg.JWT.Validate(); err != nil {
		slog.Error("Invalid JWT configuration", "err", err)
		os.Exit(-1)
	}

	generator, err := token.NewJWTGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		slog.Error("Failed creating token generator", "err", err)
		os.Exit(-1)
	}

	var registry revocation.Registry
	switch cfg.Revocation {
	case "redis":
		redisRegistry, err := revocation.NewRedisRegistry(cfg.Redis.ToRegistryConfig())
		if err != nil {
			slog.Error("Failed connecting to redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port, "err", err)
			os.Exit(-1)
		}
		registry = redisRegistry
		slog.Info("Revocation registry backed by redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
	case "memory":
		registry = revocation.NewMemoryRegistry()
		slog.Info("Revocation registry in memory, revocations are per-instance")
	default:
		slog.Error("Unknown revocation backend", "backend", cfg.Revocation)
		os.Exit(-1)
	}

	var identities identity.Repository
	var families token.FamilyStore
	switch cfg.Persistence {
	case "postgres":
		pool, err := dbutils.NewDbPool(context.Background(), cfg.Database.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host,
				"port", cfg.Database.Port, "user", cfg.Database.User)
			os.Exit(-1)
		}
		identities = identity.NewPostgresRepository(pool)
		families = token.NewPostgresFamilyStore(pool)
	case "memory":
		slog.Warn("Using in-memory persistence, all auth state is lost on restart")
		identities = identity.NewInMemoryRepository()
		families = token.NewInMemoryFamilyStore()
	default:
		slog.Error("Unknown persistence backend", "backend", cfg.Persistence)
		os.Exit(-1)
	}

	issuer := token.NewIssuer(generator, families, registry, cfg.JWT.ToIssuerOptions()...)

	var notifier notify.Notifier = notify.NewNoopNotifier()
	if cfg.Email.Enabled {
		emailNotifier, err := notify.NewEmailNotifier(cfg.Email.ToSMTPConfig())
		if err != nil {
			slog.Error("Failed creating email notifier", "host", cfg.Email.Host, "err", err)
			os.Exit(-1)
		}
		notifier = emailNotifier
	}

	providers, err := cfg.Providers.ToRegistry()
	if err != nil {
		slog.Error("Invalid provider configuration", "err", err)
		os.Exit(-1)
	}
	slog.Info("OAuth providers configured", "providers", providers.IDs())

	service, err := login.NewServiceWithConfig(
		identities,
		issuer,
		generator,
		registry,
		cfg.Login.ToServiceConfig(),
		login.WithNotifier(notifier),
		login.WithProviderRegistry(providers),
	)
	if err != nil {
		slog.Error("Failed creating login service", "err", err)
		os.Exit(-1)
	}

	handler := api.NewHandler(service)
	validator := session.NewValidator(generator, registry, identities)

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	authRouter := chi.NewRouter()
	if cfg.RateLimit.Enabled {
		rateLimiter := ratelimit.NewMiddleware(cfg.RateLimit.ToMiddlewareConfig())
		authRouter.Use(rateLimiter.Handler)
	}
	authRouter.Mount("/", api.Routes(handler))

	server.R.Mount("/auth", authRouter)
	server.R.Mount("/", api.ProtectedRoutes(handler, validator))

	server.Run()
}
