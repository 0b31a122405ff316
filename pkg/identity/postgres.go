package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL identity repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const identityColumns = `
	id, email, name, password_hash, password_version, twofa_secret,
	twofa_enabled, failed_attempts, locked_until, password_changed_at,
	email_verified, version, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (Identity, error) {
	var (
		ident        Identity
		passwordHash sql.NullString
		twofaSecret  sql.NullString
		lockedUntil  sql.NullTime
	)
	err := row.Scan(
		&ident.ID,
		&ident.Email,
		&ident.Name,
		&passwordHash,
		&ident.PasswordVersion,
		&twofaSecret,
		&ident.TwoFactorEnabled,
		&ident.FailedAttempts,
		&lockedUntil,
		&ident.PasswordChangedAt,
		&ident.EmailVerified,
		&ident.Version,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		return Identity{}, err
	}
	if passwordHash.Valid {
		ident.PasswordHash = passwordHash.String
	}
	if twofaSecret.Valid {
		ident.TwoFactorSecret = twofaSecret.String
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		ident.LockedUntil = &t
	}
	return ident, nil
}

func (r *PostgresRepository) loadLinks(ctx context.Context, ident *Identity) error {
	rows, err := r.pool.Query(ctx, `
		SELECT provider, subject, linked_at
		FROM identity_provider_links
		WHERE identity_id = $1
		ORDER BY linked_at
	`, ident.ID)
	if err != nil {
		return fmt.Errorf("failed to load provider links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link ProviderLink
		if err := rows.Scan(&link.Provider, &link.Subject, &link.LinkedAt); err != nil {
			return fmt.Errorf("failed to scan provider link: %w", err)
		}
		ident.Providers = append(ident.Providers, link)
	}
	return rows.Err()
}

// FindByEmail implements Repository.FindByEmail
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("failed to find identity by email: %w", err)
	}
	if err := r.loadLinks(ctx, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// FindByID implements Repository.FindByID
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("failed to find identity by id: %w", err)
	}
	if err := r.loadLinks(ctx, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// FindByProviderSubject implements Repository.FindByProviderSubject
func (r *PostgresRepository) FindByProviderSubject(ctx context.Context, provider, subject string) (Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE id = (
			SELECT identity_id FROM identity_provider_links
			WHERE provider = $1 AND subject = $2
		)
	`

	ident, err := scanIdentity(r.pool.QueryRow(ctx, query, provider, subject))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("failed to find identity by provider subject: %w", err)
	}
	if err := r.loadLinks(ctx, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// Create implements Repository.Create
func (r *PostgresRepository) Create(ctx context.Context, ident Identity) (Identity, error) {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	ident.Email = NormalizeEmail(ident.Email)
	if ident.PasswordChangedAt.IsZero() {
		ident.PasswordChangedAt = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO identities (
			id, email, name, password_hash, password_version, twofa_secret,
			twofa_enabled, failed_attempts, locked_until, password_changed_at,
			email_verified, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, NOW(), NOW()
		) RETURNING ` + identityColumns

	stored, err := scanIdentity(tx.QueryRow(ctx, query,
		ident.ID,
		ident.Email,
		ident.Name,
		nullString(ident.PasswordHash),
		ident.PasswordVersion,
		nullString(ident.TwoFactorSecret),
		ident.TwoFactorEnabled,
		ident.FailedAttempts,
		ident.LockedUntil,
		ident.PasswordChangedAt,
		ident.EmailVerified,
	))
	if err != nil {
		return Identity{}, mapUniqueViolation(err, "failed to create identity")
	}

	for _, l := range ident.Providers {
		linkedAt := l.LinkedAt
		if linkedAt.IsZero() {
			linkedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO identity_provider_links (identity_id, provider, subject, linked_at)
			VALUES ($1, $2, $3, $4)
		`, ident.ID, l.Provider, l.Subject, linkedAt)
		if err != nil {
			return Identity{}, mapUniqueViolation(err, "failed to link provider")
		}
		stored.Providers = append(stored.Providers, ProviderLink{
			Provider: l.Provider,
			Subject:  l.Subject,
			LinkedAt: linkedAt,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Identity{}, fmt.Errorf("failed to commit identity create: %w", err)
	}
	return stored, nil
}

// Save implements Repository.Save
func (r *PostgresRepository) Save(ctx context.Context, ident Identity) (Identity, error) {
	ident.Email = NormalizeEmail(ident.Email)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE identities SET
			email = $1,
			name = $2,
			password_hash = $3,
			password_version = $4,
			twofa_secret = $5,
			twofa_enabled = $6,
			failed_attempts = $7,
			locked_until = $8,
			password_changed_at = $9,
			email_verified = $10,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $11 AND version = $12
		RETURNING ` + identityColumns

	stored, err := scanIdentity(tx.QueryRow(ctx, query,
		ident.Email,
		ident.Name,
		nullString(ident.PasswordHash),
		ident.PasswordVersion,
		nullString(ident.TwoFactorSecret),
		ident.TwoFactorEnabled,
		ident.FailedAttempts,
		ident.LockedUntil,
		ident.PasswordChangedAt,
		ident.EmailVerified,
		ident.ID,
		ident.Version,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			var exists bool
			if lookupErr := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM identities WHERE id = $1)`, ident.ID,
			).Scan(&exists); lookupErr != nil {
				return Identity{}, fmt.Errorf("failed to check identity existence: %w", lookupErr)
			}
			if !exists {
				return Identity{}, ErrIdentityNotFound
			}
			return Identity{}, ErrVersionConflict
		}
		return Identity{}, mapUniqueViolation(err, "failed to save identity")
	}

	existing := make(map[providerKey]bool)
	rows, err := tx.Query(ctx, `
		SELECT provider, subject FROM identity_provider_links WHERE identity_id = $1
	`, ident.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to load provider links: %w", err)
	}
	for rows.Next() {
		var k providerKey
		if err := rows.Scan(&k.provider, &k.subject); err != nil {
			rows.Close()
			return Identity{}, fmt.Errorf("failed to scan provider link: %w", err)
		}
		existing[k] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Identity{}, err
	}

	for _, l := range ident.Providers {
		linkedAt := l.LinkedAt
		if linkedAt.IsZero() {
			linkedAt = time.Now().UTC()
		}
		if existing[providerKey{l.Provider, l.Subject}] {
			stored.Providers = append(stored.Providers, ProviderLink{
				Provider: l.Provider,
				Subject:  l.Subject,
				LinkedAt: l.LinkedAt,
			})
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO identity_provider_links (identity_id, provider, subject, linked_at)
			VALUES ($1, $2, $3, $4)
		`, ident.ID, l.Provider, l.Subject, linkedAt)
		if err != nil {
			return Identity{}, mapUniqueViolation(err, "failed to link provider")
		}
		stored.Providers = append(stored.Providers, ProviderLink{
			Provider: l.Provider,
			Subject:  l.Subject,
			LinkedAt: linkedAt,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Identity{}, fmt.Errorf("failed to commit identity save: %w", err)
	}
	return stored, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapUniqueViolation(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "identities_email_key":
			return ErrDuplicateEmail
		case "identity_provider_links_pkey":
			return ErrDuplicateProviderLink
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", msg, err)
}
