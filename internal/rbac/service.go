package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// Service owns the authoritative set of roles. It does not write audit
// entries; the HTTP layer records mutations with the acting user attached.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all roles in insertion order.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get fetches a single role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Create inserts a new role. The matrix is copied; callers keep ownership
// of the value they pass in.
func (s *Service) Create(ctx context.Context, name, description string, matrix Matrix) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if err := matrix.Validate(); err != nil {
		return Role{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	role := Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Matrix:      matrix.Clone(),
	}
	return s.repo.CreateRole(ctx, role)
}

// Update replaces name, description and matrix wholesale. There is no
// partial merge; callers supply the full desired matrix. The system flag
// is immutable through this call.
func (s *Service) Update(ctx context.Context, id int64, name, description string, matrix Matrix) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if err := matrix.Validate(); err != nil {
		return Role{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	existing.Name = name
	existing.Description = strings.TrimSpace(description)
	existing.Matrix = matrix.Clone()
	return s.repo.UpdateRole(ctx, existing)
}

// Clone produces a new role with a fresh identifier, a copy suffix on the
// name and a deep-copied matrix. Clones are never system roles.
func (s *Service) Clone(ctx context.Context, id int64) (Role, error) {
	source, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	clone := Role{
		Name:        source.Name + " (Copy)",
		Description: source.Description,
		Matrix:      source.Matrix.Clone(),
	}
	return s.repo.CreateRole(ctx, clone)
}

// Delete removes a role. System roles are refused; users referencing the
// deleted role resolve to no permissions from then on.
func (s *Service) Delete(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", shared.ErrProtectedEntity, role.Name)
	}
	return s.repo.DeleteRole(ctx, id)
}
