// role_repository.go implements RoleRepository, providing queries for role
// CRUD and seeding of the built-in catalog roles. System roles cannot be
// modified or deleted through the repository's guarded methods.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// RoleRepository handles role database operations
type RoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create inserts a new role
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	role.ID = uuid.New().String()
	role.CreatedAt = time.Now()
	role.UpdatedAt = time.Now()

	verbsJSON, err := json.Marshal(role.Verbs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO roles (id, name, display_name, description, verbs, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		verbsJSON,
		role.IsSystem,
		role.CreatedAt,
		role.UpdatedAt,
	)

	if isUniqueViolation(err) {
		return fmt.Errorf("role %q already exists: %w", role.Name, auth.ErrConflict)
	}

	return err
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `
		SELECT id, name, display_name, description, verbs, is_system, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	return r.scanRole(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a role by its unique name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `
		SELECT id, name, display_name, description, verbs, is_system, created_at, updated_at
		FROM roles
		WHERE name = $1
	`
	return r.scanRole(r.db.QueryRowContext(ctx, query, name))
}

func (r *RoleRepository) scanRole(row *sql.Row) (*models.Role, error) {
	role := &models.Role{}
	var verbsJSON []byte

	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&verbsJSON,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(verbsJSON, &role.Verbs)
	if err != nil {
		return nil, err
	}

	return role, nil
}

// List retrieves all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	query := `
		SELECT id, name, display_name, description, verbs, is_system, created_at, updated_at
		FROM roles
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role := &models.Role{}
		var verbsJSON []byte

		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&verbsJSON,
			&role.IsSystem,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(verbsJSON, &role.Verbs); err != nil {
			return nil, err
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// Update updates a non-system role's mutable fields. System roles are
// rejected with auth.ErrConflict.
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	existing, err := r.GetByID(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("role not found: %w", auth.ErrNotFound)
	}
	if existing.IsSystem {
		return fmt.Errorf("system role %q is immutable: %w", existing.Name, auth.ErrConflict)
	}

	role.UpdatedAt = time.Now()

	verbsJSON, err := json.Marshal(role.Verbs)
	if err != nil {
		return err
	}

	query := `
		UPDATE roles
		SET display_name = $2, description = $3, verbs = $4, updated_at = $5
		WHERE id = $1 AND is_system = FALSE
	`

	_, err = r.db.ExecContext(ctx, query,
		role.ID,
		role.DisplayName,
		role.Description,
		verbsJSON,
		role.UpdatedAt,
	)

	return err
}

// Delete removes a non-system role. Deleting a system role is a conflict.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("role not found: %w", auth.ErrNotFound)
	}
	if existing.IsSystem {
		return fmt.Errorf("system role %q cannot be deleted: %w", existing.Name, auth.ErrConflict)
	}

	query := `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`
	_, err = r.db.ExecContext(ctx, query, id)
	return err
}

// EnsureBuiltinRoles seeds the catalog's built-in roles, inserting any that
// are missing and refreshing the verb sets of those that exist. The catalog
// is the source of truth; database rows for system roles only mirror it.
func (r *RoleRepository) EnsureBuiltinRoles(ctx context.Context) error {
	for _, spec := range authz.BuiltinRoles() {
		verbs := make([]string, 0, len(spec.Verbs))
		for _, v := range spec.Verbs {
			verbs = append(verbs, string(v))
		}

		verbsJSON, err := json.Marshal(verbs)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO roles (id, name, display_name, description, verbs, is_system, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
			ON CONFLICT (name)
			DO UPDATE SET display_name = $3, description = $4, verbs = $5, is_system = TRUE, updated_at = $6
		`

		_, err = r.db.ExecContext(ctx, query,
			uuid.New().String(),
			spec.Name,
			spec.DisplayName,
			spec.Description,
			verbsJSON,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("seed role %q: %w", spec.Name, err)
		}
	}

	return nil
}
