package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// RefreshTokenRepository handles refresh token database operations. The table
// only ever stores SHA-256 digests, never the tokens themselves.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create inserts a fresh token row for a principal
func (r *RefreshTokenRepository) Create(ctx context.Context, principalID, tokenDigest string) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		TokenDigest: tokenDigest,
		Revoked:     false,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO refresh_tokens (id, principal_id, token_digest, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, rt.ID, rt.PrincipalID, rt.TokenDigest, rt.Revoked, rt.CreatedAt)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// GetByDigest retrieves a token row by its digest. Returns nil when no row
// matches, revoked rows included in the result so callers can tell reuse
// apart from an unknown token.
func (r *RefreshTokenRepository) GetByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	query := `
		SELECT id, principal_id, token_digest, revoked, created_at
		FROM refresh_tokens
		WHERE token_digest = $1
	`

	rt := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&rt.ID,
		&rt.PrincipalID,
		&rt.TokenDigest,
		&rt.Revoked,
		&rt.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return rt, nil
}

// Rotate atomically revokes the row matching oldDigest and inserts a
// successor row with newDigest for the same principal. The UPDATE is guarded
// by revoked = false so that two concurrent rotations of the same token
// cannot both succeed: the loser updates zero rows and the whole transaction
// is rolled back with auth.ErrAuthentication.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldDigest, newDigest string) (*models.RefreshToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint:errcheck

	var principalID string
	err = tx.QueryRowContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_digest = $1 AND revoked = FALSE
		RETURNING principal_id
	`, oldDigest).Scan(&principalID)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("refresh token already used or unknown: %w", auth.ErrAuthentication)
	}

	if err != nil {
		return nil, err
	}

	successor := &models.RefreshToken{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		TokenDigest: newDigest,
		Revoked:     false,
		CreatedAt:   time.Now(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, principal_id, token_digest, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, successor.ID, successor.PrincipalID, successor.TokenDigest, successor.Revoked, successor.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return successor, nil
}

// Revoke marks the row matching digest as revoked. Revoking an already
// revoked or unknown token is not an error, so logout stays idempotent.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, digest string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token_digest = $1`
	_, err := r.db.ExecContext(ctx, query, digest)
	return err
}

// RevokeAllForPrincipal revokes every live token a principal holds. Used when
// a password is reset or an account is deactivated.
func (r *RefreshTokenRepository) RevokeAllForPrincipal(ctx context.Context, principalID string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE principal_id = $1 AND revoked = FALSE`
	result, err := r.db.ExecContext(ctx, query, principalID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PruneRevoked deletes revoked rows older than the retention window and
// returns how many were removed. Live rows are never touched.
func (r *RefreshTokenRepository) PruneRevoked(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	query := `DELETE FROM refresh_tokens WHERE revoked = TRUE AND created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
