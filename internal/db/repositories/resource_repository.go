// resource_repository.go implements ResourceRepository, providing queries for
// the scoping entities roles are granted against. Lifecycle transitions are
// validated here so no caller can resurrect a deleted resource.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// ResourceRepository handles resource database operations
type ResourceRepository struct {
	db *sql.DB
}

// NewResourceRepository creates a new ResourceRepository
func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a new resource in ACTIVE status
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	res.ID = uuid.New().String()
	res.Status = models.ResourceStatusActive
	res.CreatedAt = time.Now()
	res.UpdatedAt = time.Now()

	query := `
		INSERT INTO resources (id, name, display_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.Name,
		res.DisplayName,
		res.Status,
		res.CreatedAt,
		res.UpdatedAt,
	)

	if isUniqueViolation(err) {
		return fmt.Errorf("resource %q already exists: %w", res.Name, auth.ErrConflict)
	}

	return err
}

// GetByID retrieves a resource by ID
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `
		SELECT id, name, display_name, status, created_at, updated_at
		FROM resources
		WHERE id = $1
	`

	res := &models.Resource{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID,
		&res.Name,
		&res.DisplayName,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return res, nil
}

// GetByName retrieves a resource by its unique name
func (r *ResourceRepository) GetByName(ctx context.Context, name string) (*models.Resource, error) {
	query := `
		SELECT id, name, display_name, status, created_at, updated_at
		FROM resources
		WHERE name = $1
	`

	res := &models.Resource{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&res.ID,
		&res.Name,
		&res.DisplayName,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return res, nil
}

// List retrieves a paginated list of resources plus the total count.
// When includeDeleted is false, DELETED resources are filtered out.
func (r *ResourceRepository) List(ctx context.Context, includeDeleted bool, limit, offset int) ([]*models.Resource, int, error) {
	statusFilter := ""
	if !includeDeleted {
		statusFilter = ` WHERE status != 'DELETED'`
	}

	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`+statusFilter).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, display_name, status, created_at, updated_at
		FROM resources` + statusFilter + `
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	resources := make([]*models.Resource, 0)
	for rows.Next() {
		res := &models.Resource{}
		err := rows.Scan(
			&res.ID,
			&res.Name,
			&res.DisplayName,
			&res.Status,
			&res.CreatedAt,
			&res.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		resources = append(resources, res)
	}

	return resources, total, rows.Err()
}

// Update updates a resource's display name
func (r *ResourceRepository) Update(ctx context.Context, res *models.Resource) error {
	res.UpdatedAt = time.Now()

	query := `
		UPDATE resources
		SET display_name = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, res.ID, res.DisplayName, res.UpdatedAt)
	return err
}

// Transition moves a resource to the next lifecycle status after checking
// the step is legal. Nothing leaves DELETED.
func (r *ResourceRepository) Transition(ctx context.Context, id string, next models.ResourceStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown resource status %q: %w", next, auth.ErrConflict)
	}

	res, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("resource not found: %w", auth.ErrNotFound)
	}
	if !res.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition resource from %s to %s: %w", res.Status, next, auth.ErrConflict)
	}

	query := `UPDATE resources SET status = $2, updated_at = $3 WHERE id = $1`
	_, err = r.db.ExecContext(ctx, query, id, next, time.Now())
	return err
}
