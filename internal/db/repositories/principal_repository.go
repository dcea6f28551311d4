// Package repositories implements the data access layer (repository pattern)
// for the identity platform. Each repository type encapsulates all database
// queries for a domain entity. Services and handlers never issue SQL directly —
// all database access goes through this layer, which makes query logic
// testable in isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// PrincipalRepository handles principal and credential database operations.
// Credentials live here rather than in their own repository because they are
// strictly one-to-one with principals and every caller needs both together.
type PrincipalRepository struct {
	db *sql.DB
}

// NewPrincipalRepository creates a new PrincipalRepository
func NewPrincipalRepository(db *sql.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// Create inserts a new principal
func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()

	query := `
		INSERT INTO principals (id, email, name, is_active, is_super_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Email,
		p.Name,
		p.IsActive,
		p.IsSuperAdmin,
		p.CreatedAt,
		p.UpdatedAt,
	)

	return err
}

// GetPrincipal retrieves a principal by ID. Returns nil when unknown.
func (r *PrincipalRepository) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	query := `
		SELECT id, email, name, is_active, is_super_admin, created_at, updated_at
		FROM principals
		WHERE id = $1
	`

	p := &models.Principal{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.IsActive,
		&p.IsSuperAdmin,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// GetByEmail retrieves a principal by email, active or not
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `
		SELECT id, email, name, is_active, is_super_admin, created_at, updated_at
		FROM principals
		WHERE email = $1
	`

	p := &models.Principal{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.IsActive,
		&p.IsSuperAdmin,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// GetActiveByEmail retrieves an active principal by email. Deactivated
// accounts are invisible to this query — the login path uses it so a
// disabled account fails exactly like an unknown one.
func (r *PrincipalRepository) GetActiveByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `
		SELECT id, email, name, is_active, is_super_admin, created_at, updated_at
		FROM principals
		WHERE email = $1 AND is_active = TRUE
	`

	p := &models.Principal{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.IsActive,
		&p.IsSuperAdmin,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// Update updates a principal's mutable fields
func (r *PrincipalRepository) Update(ctx context.Context, p *models.Principal) error {
	p.UpdatedAt = time.Now()

	query := `
		UPDATE principals
		SET email = $2, name = $3, is_active = $4, is_super_admin = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Email,
		p.Name,
		p.IsActive,
		p.IsSuperAdmin,
		p.UpdatedAt,
	)

	return err
}

// SetActive toggles the active flag
func (r *PrincipalRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE principals SET is_active = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, active, time.Now())
	return err
}

// Delete hard-deletes a principal (cascades to credential, assignments, and tokens)
func (r *PrincipalRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM principals WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// List retrieves a paginated list of principals plus the total count
func (r *PrincipalRepository) List(ctx context.Context, limit, offset int) ([]*models.Principal, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM principals`
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, email, name, is_active, is_super_admin, created_at, updated_at
		FROM principals
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	principals := make([]*models.Principal, 0)
	for rows.Next() {
		p := &models.Principal{}
		err := rows.Scan(
			&p.ID,
			&p.Email,
			&p.Name,
			&p.IsActive,
			&p.IsSuperAdmin,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		principals = append(principals, p)
	}

	return principals, total, rows.Err()
}

// GetCredential retrieves the credential record for a principal. Returns nil
// when the principal has never had a password set.
func (r *PrincipalRepository) GetCredential(ctx context.Context, principalID string) (*models.Credential, error) {
	query := `
		SELECT principal_id, password_hash, updated_at, updated_by
		FROM credentials
		WHERE principal_id = $1
	`

	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, principalID).Scan(
		&c.PrincipalID,
		&c.PasswordHash,
		&c.UpdatedAt,
		&c.UpdatedBy,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return c, nil
}

// ReplaceCredential upserts the credential hash for a principal in one
// statement. The previous hash is overwritten, never retained.
// updatedBy records who performed the replacement.
func (r *PrincipalRepository) ReplaceCredential(ctx context.Context, principalID, passwordHash string, updatedBy *string) error {
	query := `
		INSERT INTO credentials (principal_id, password_hash, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id)
		DO UPDATE SET password_hash = $2, updated_at = $3, updated_by = $4
	`

	_, err := r.db.ExecContext(ctx, query, principalID, passwordHash, time.Now(), updatedBy)
	return err
}
