package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence. The permission matrix
// is stored as JSONB.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles in insertion order.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, matrix, is_system, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, matrix, is_system, created_at, updated_at FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a role and returns it with its assigned id.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	matrix, err := json.Marshal(role.Matrix)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, matrix, is_system, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 RETURNING id, name, description, matrix, is_system, created_at, updated_at`,
		role.Name, role.Description, matrix, role.IsSystem)
	return scanRole(row)
}

// UpdateRole replaces the stored role wholesale except the system flag.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	matrix, err := json.Marshal(role.Matrix)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, matrix = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, description, matrix, is_system, created_at, updated_at`,
		role.ID, role.Name, role.Description, matrix)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, role.ID)
		}
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role by id.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var matrix []byte
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &matrix, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	if len(matrix) > 0 {
		if err := json.Unmarshal(matrix, &role.Matrix); err != nil {
			return Role{}, fmt.Errorf("rbac: decode matrix for role %d: %w", role.ID, err)
		}
	}
	if role.Matrix == nil {
		role.Matrix = Matrix{}
	}
	return role, nil
}
