// assignment_repository.go implements AssignmentRepository, providing queries
// for role grants and the joined grant view the authorization resolver reads.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// AssignmentRepository handles assignment database operations
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new grant. A duplicate (principal, role, scope) triple
// surfaces as auth.ErrConflict.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now()

	query := `
		INSERT INTO assignments (id, principal_id, role_id, resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.PrincipalID,
		a.RoleID,
		a.ResourceID,
		a.CreatedAt,
	)

	if isUniqueViolation(err) {
		return fmt.Errorf("identical grant already exists: %w", auth.ErrConflict)
	}

	return err
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `
		SELECT id, principal_id, role_id, resource_id, created_at
		FROM assignments
		WHERE id = $1
	`

	a := &models.Assignment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.PrincipalID,
		&a.RoleID,
		&a.ResourceID,
		&a.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return a, nil
}

// Delete removes a grant. Deleting an unknown grant is not an error.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM assignments WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ListGrants retrieves the grants that bear on an authorization decision for
// a principal: every global grant, plus the grants scoped to resourceID when
// one is given. Each row carries the role's verb set and the scoped
// resource's status so the resolver can apply its own filtering.
func (r *AssignmentRepository) ListGrants(ctx context.Context, principalID string, resourceID *string) ([]*models.AssignmentGrant, error) {
	query := `
		SELECT a.id, a.principal_id, a.role_id, r.name, r.display_name, r.verbs,
		       a.resource_id, res.status, a.created_at
		FROM assignments a
		JOIN roles r ON a.role_id = r.id
		LEFT JOIN resources res ON a.resource_id = res.id
		WHERE a.principal_id = $1
		  AND (a.resource_id IS NULL OR a.resource_id = $2)
		ORDER BY a.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, principalID, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListAllGrantsForPrincipal retrieves every grant a principal holds across
// all scopes, for the admin listing endpoints.
func (r *AssignmentRepository) ListAllGrantsForPrincipal(ctx context.Context, principalID string) ([]*models.AssignmentGrant, error) {
	query := `
		SELECT a.id, a.principal_id, a.role_id, r.name, r.display_name, r.verbs,
		       a.resource_id, res.status, a.created_at
		FROM assignments a
		JOIN roles r ON a.role_id = r.id
		LEFT JOIN resources res ON a.resource_id = res.id
		WHERE a.principal_id = $1
		ORDER BY a.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListGrantsForResource retrieves every grant scoped to one resource
func (r *AssignmentRepository) ListGrantsForResource(ctx context.Context, resourceID string) ([]*models.AssignmentGrant, error) {
	query := `
		SELECT a.id, a.principal_id, a.role_id, r.name, r.display_name, r.verbs,
		       a.resource_id, res.status, a.created_at
		FROM assignments a
		JOIN roles r ON a.role_id = r.id
		LEFT JOIN resources res ON a.resource_id = res.id
		WHERE a.resource_id = $1
		ORDER BY a.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

func scanGrants(rows *sql.Rows) ([]*models.AssignmentGrant, error) {
	grants := make([]*models.AssignmentGrant, 0)
	for rows.Next() {
		g := &models.AssignmentGrant{}
		var verbsJSON []byte

		err := rows.Scan(
			&g.AssignmentID,
			&g.PrincipalID,
			&g.RoleID,
			&g.RoleName,
			&g.RoleDisplayName,
			&verbsJSON,
			&g.ResourceID,
			&g.ResourceStatus,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(verbsJSON, &g.Verbs); err != nil {
			return nil, err
		}

		grants = append(grants, g)
	}

	return grants, rows.Err()
}
