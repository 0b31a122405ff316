package token

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFamilyStore implements FamilyStore on the refresh_token_families
// table. Rotate relies on a conditional UPDATE so the compare-and-set holds
// across processes.
type PostgresFamilyStore struct {
	pool *pgxpool.Pool
}

func NewPostgresFamilyStore(pool *pgxpool.Pool) *PostgresFamilyStore {
	return &PostgresFamilyStore{pool: pool}
}

func (s *PostgresFamilyStore) Create(ctx context.Context, family RefreshTokenFamily) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token_families (family_id, identity_id, current_token_id, issued_at, rotated_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		family.FamilyID,
		family.IdentityID,
		family.CurrentTokenID,
		family.IssuedAt,
		nullTime(family.RotatedAt),
		family.ExpiresAt,
		nullTime(family.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create token family: %w", err)
	}
	return nil
}

func (s *PostgresFamilyStore) Get(ctx context.Context, familyID uuid.UUID) (RefreshTokenFamily, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT family_id, identity_id, current_token_id, issued_at, rotated_at, expires_at, revoked_at
		FROM refresh_token_families
		WHERE family_id = $1`,
		familyID,
	)
	return scanFamily(row)
}

func (s *PostgresFamilyStore) Rotate(ctx context.Context, familyID uuid.UUID, oldTokenID, newTokenID string, rotatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_families
		SET current_token_id = $3, rotated_at = $4
		WHERE family_id = $1 AND current_token_id = $2 AND revoked_at IS NULL`,
		familyID, oldTokenID, newTokenID, rotatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate token family: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// The swap did not land. Read the row back to tell the caller why.
	family, err := s.Get(ctx, familyID)
	if err != nil {
		return err
	}
	if family.RevokedAt != nil {
		return ErrFamilyRevoked
	}
	return ErrTokenConsumed
}

func (s *PostgresFamilyStore) MarkRevoked(ctx context.Context, familyID uuid.UUID, revokedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_families
		SET revoked_at = $2
		WHERE family_id = $1 AND revoked_at IS NULL`,
		familyID, revokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either already revoked or missing. Revoking twice is fine.
		_, err := s.Get(ctx, familyID)
		return err
	}
	return nil
}

func (s *PostgresFamilyStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM refresh_token_families
		WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired token families: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanFamily(row pgx.Row) (RefreshTokenFamily, error) {
	var family RefreshTokenFamily
	var rotatedAt, revokedAt sql.NullTime

	err := row.Scan(
		&family.FamilyID,
		&family.IdentityID,
		&family.CurrentTokenID,
		&family.IssuedAt,
		&rotatedAt,
		&family.ExpiresAt,
		&revokedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return RefreshTokenFamily{}, ErrFamilyNotFound
		}
		return RefreshTokenFamily{}, fmt.Errorf("failed to scan token family: %w", err)
	}
	if rotatedAt.Valid {
		family.RotatedAt = &rotatedAt.Time
	}
	if revokedAt.Valid {
		family.RevokedAt = &revokedAt.Time
	}
	return family, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
