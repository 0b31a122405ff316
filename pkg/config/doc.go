// Package config holds the environment-driven configuration for the auth
// service.
//
// Each concern gets its own section struct with cleanenv `env` tags and
// defaults, plus a conversion helper into the package that consumes it.
// Callers embed the sections they need and read them in one pass:
//
//	var cfg struct {
//		Database config.DatabaseConfig
//		JWT      config.JWTConfig
//	}
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//		log.Fatal(err)
//	}
//	pool, err := dbutils.NewDbPool(ctx, cfg.Database.ToDbConfig())
//
// Secrets (JWT_SECRET, AUTH_PG_PASSWORD, EMAIL_PASSWORD) have no defaults
// that are safe for production; Validate catches the ones that must be set.
package config
