// password_reset_repository.go implements PasswordResetRepository, providing
// queries for the single-use reset tokens and the per-principal request
// cooldown.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// PasswordResetRepository handles password reset token database operations
type PasswordResetRepository struct {
	db *sql.DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository
func NewPasswordResetRepository(db *sql.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create inserts a reset token row expiring at expiresAt
func (r *PasswordResetRepository) Create(ctx context.Context, principalID, tokenDigest string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	t := &models.PasswordResetToken{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		TokenDigest: tokenDigest,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO password_reset_tokens (id, principal_id, token_digest, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.PrincipalID, t.TokenDigest, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// GetByDigest retrieves a reset token by digest. Returns nil when unknown.
func (r *PasswordResetRepository) GetByDigest(ctx context.Context, digest string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, principal_id, token_digest, expires_at, consumed_at, created_at
		FROM password_reset_tokens
		WHERE token_digest = $1
	`

	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&t.ID,
		&t.PrincipalID,
		&t.TokenDigest,
		&t.ExpiresAt,
		&t.ConsumedAt,
		&t.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return t, nil
}

// Consume marks a token as used. The consumed_at IS NULL guard makes the
// operation single-winner: a second consume of the same token updates zero
// rows and returns false.
func (r *PasswordResetRepository) Consume(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE password_reset_tokens
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// HasRecentRequest reports whether the principal requested a reset within
// the cooldown window, consumed or not.
func (r *PasswordResetRepository) HasRecentRequest(ctx context.Context, principalID string, cooldown time.Duration) (bool, error) {
	cutoff := time.Now().Add(-cooldown)

	var count int
	query := `SELECT COUNT(*) FROM password_reset_tokens WHERE principal_id = $1 AND created_at > $2`
	err := r.db.QueryRowContext(ctx, query, principalID, cutoff).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteExpired removes tokens past their expiry, returning how many were
// removed. Consumed rows inside the window are kept for the audit trail.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at < $1 AND consumed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
