package rbac_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	_ "github.com/cargodesk-erp/cargodesk-erp/testing"
)

type memRoleRepo struct {
	mu     sync.Mutex
	nextID int64
	order  []int64
	roles  map[int64]rbac.Role
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{roles: make(map[int64]rbac.Role)}
}

func (m *memRoleRepo) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Role, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.roles[id])
	}
	return out, nil
}

func (m *memRoleRepo) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return role, nil
}

func (m *memRoleRepo) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	role.ID = m.nextID
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	m.roles[role.ID] = role
	m.order = append(m.order, role.ID)
	return role, nil
}

func (m *memRoleRepo) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, role.ID)
	}
	role.UpdatedAt = time.Now().UTC()
	m.roles[role.ID] = role
	return role, nil
}

func (m *memRoleRepo) DeleteRole(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	delete(m.roles, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func seedSystemRole(t *testing.T, repo *memRoleRepo, name string, matrix rbac.Matrix) rbac.Role {
	t.Helper()
	role, err := repo.CreateRole(context.Background(), rbac.Role{Name: name, Matrix: matrix, IsSystem: true})
	if err != nil {
		t.Fatalf("seed role: %v", err)
	}
	return role
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := rbac.NewService(newMemRoleRepo())
	if _, err := svc.Create(context.Background(), "   ", "", rbac.Matrix{}); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRejectsUnknownModule(t *testing.T) {
	svc := rbac.NewService(newMemRoleRepo())
	matrix := rbac.Matrix{"smuggling": rbac.NewActionSet(rbac.ActionView)}
	if _, err := svc.Create(context.Background(), "Bad", "", matrix); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCopiesMatrix(t *testing.T) {
	svc := rbac.NewService(newMemRoleRepo())
	matrix := rbac.Matrix{}
	matrix.Grant(rbac.ModuleFreight, rbac.ActionView)

	role, err := svc.Create(context.Background(), "Clerk", "", matrix)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating the caller's matrix must not leak into the stored role.
	matrix.Grant(rbac.ModuleSettings, rbac.ActionDelete)
	stored, err := svc.Get(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Matrix.Allows(rbac.ModuleSettings, rbac.ActionDelete) {
		t.Fatalf("stored role shares matrix with caller")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	repo := newMemRoleRepo()
	svc := rbac.NewService(repo)
	admin := seedSystemRole(t, repo, "Administrator", rbac.FullMatrix())

	clone, err := svc.Clone(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Name != "Administrator (Copy)" {
		t.Fatalf("clone name = %q", clone.Name)
	}
	if clone.IsSystem {
		t.Fatalf("clone must not inherit the system flag")
	}
	if clone.ID == admin.ID {
		t.Fatalf("clone reused the source id")
	}

	// Narrow the clone; the source must keep its full grant.
	if _, err := svc.Update(context.Background(), clone.ID, clone.Name, "", rbac.Matrix{}); err != nil {
		t.Fatalf("update clone: %v", err)
	}
	source, err := svc.Get(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if !source.Matrix.Allows(rbac.ModuleSettings, rbac.ActionDelete) {
		t.Fatalf("editing the clone changed the source role")
	}
}

func TestUpdateKeepsSystemFlag(t *testing.T) {
	repo := newMemRoleRepo()
	svc := rbac.NewService(repo)
	admin := seedSystemRole(t, repo, "Administrator", rbac.FullMatrix())

	updated, err := svc.Update(context.Background(), admin.ID, "Administrator", "head office", rbac.FullMatrix())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsSystem {
		t.Fatalf("update cleared the system flag")
	}
}

func TestDeleteSystemRoleRefused(t *testing.T) {
	repo := newMemRoleRepo()
	svc := rbac.NewService(repo)
	admin := seedSystemRole(t, repo, "Administrator", rbac.FullMatrix())

	if err := svc.Delete(context.Background(), admin.ID); !errors.Is(err, shared.ErrProtectedEntity) {
		t.Fatalf("expected protected entity error, got %v", err)
	}
	if _, err := svc.Get(context.Background(), admin.ID); err != nil {
		t.Fatalf("system role disappeared: %v", err)
	}
}

func TestDeleteCustomRole(t *testing.T) {
	svc := rbac.NewService(newMemRoleRepo())
	role, err := svc.Create(context.Background(), "Temp", "", rbac.Matrix{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), role.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), role.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

// TestRegistryScenario walks the usual back-office flow: a built-in
// administrator, a narrow operations role, and a wholesale permission edit.
func TestRegistryScenario(t *testing.T) {
	repo := newMemRoleRepo()
	svc := rbac.NewService(repo)
	seedSystemRole(t, repo, "Administrator", rbac.FullMatrix())

	opsMatrix := rbac.Matrix{}
	opsMatrix.Grant(rbac.ModuleFreight, rbac.ActionView, rbac.ActionCreate, rbac.ActionEdit)
	opsMatrix.Grant(rbac.ModuleCustoms, rbac.ActionView)
	ops, err := svc.Create(context.Background(), "Freight Ops", "operations desk", opsMatrix)
	if err != nil {
		t.Fatalf("create ops: %v", err)
	}

	if !rbac.CanPerform(&ops, rbac.ModuleFreight, rbac.ActionCreate) {
		t.Fatalf("ops cannot create freight")
	}
	if rbac.CanPerform(&ops, rbac.ModuleFreight, rbac.ActionDelete) {
		t.Fatalf("ops can delete freight without a grant")
	}
	if rbac.CanPerform(&ops, rbac.ModuleFinance, rbac.ActionView) {
		t.Fatalf("ops can see finance without a grant")
	}

	// Permission edits replace the matrix wholesale.
	narrower := rbac.Matrix{}
	narrower.Grant(rbac.ModuleFreight, rbac.ActionView)
	ops, err = svc.Update(context.Background(), ops.ID, ops.Name, ops.Description, narrower)
	if err != nil {
		t.Fatalf("update ops: %v", err)
	}
	if rbac.CanPerform(&ops, rbac.ModuleFreight, rbac.ActionCreate) {
		t.Fatalf("old grant survived a wholesale matrix replace")
	}
	if rbac.CanPerform(&ops, rbac.ModuleCustoms, rbac.ActionView) {
		t.Fatalf("customs grant survived a wholesale matrix replace")
	}

	roles, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
}
