package users_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	"github.com/cargodesk-erp/cargodesk-erp/internal/users"
	_ "github.com/cargodesk-erp/cargodesk-erp/testing"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]users.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]users.User)}
}

func (m *memUserRepo) ListUsers(ctx context.Context) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) GetUser(ctx context.Context, id int64) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return users.User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return u, nil
}

func (m *memUserRepo) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return users.User{}, fmt.Errorf("%w: user %q", shared.ErrNotFound, username)
}

func (m *memUserRepo) CreateUser(ctx context.Context, u users.User) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return users.User{}, fmt.Errorf("%w: username %q", shared.ErrDuplicate, u.Username)
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *memUserRepo) UpdateUser(ctx context.Context, u users.User) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return users.User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, u.ID)
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *memUserRepo) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) UpdateLoginState(ctx context.Context, id int64, failedAttempts int, status users.Status, lastLoginAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	u.FailedAttempts = failedAttempts
	u.Status = status
	if lastLoginAt != nil {
		u.LastLoginAt = lastLoginAt
	}
	m.users[id] = u
	return nil
}

func createTestUser(t *testing.T, svc *users.Service, username string) users.User {
	t.Helper()
	user, err := svc.Create(context.Background(), users.CreateInput{
		FullName: "Ana Ferreira",
		Username: username,
		Email:    username + "@cargodesk.local",
		RoleID:   1,
		Password: "initial-pass",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCreateValidation(t *testing.T) {
	svc := users.NewService(newMemUserRepo(), 3)
	cases := []struct {
		name  string
		input users.CreateInput
	}{
		{"missing full name", users.CreateInput{Username: "ana", Password: "long-enough"}},
		{"missing username", users.CreateInput{FullName: "Ana", Password: "long-enough"}},
		{"short password", users.CreateInput{FullName: "Ana", Username: "ana", Password: "short"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(context.Background(), tc.input); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCreateHashesPassword(t *testing.T) {
	svc := users.NewService(newMemUserRepo(), 3)
	user := createTestUser(t, svc, "ana")
	if user.PasswordHash == "initial-pass" {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("initial-pass")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if user.Status != users.StatusActive {
		t.Fatalf("new user status = %q", user.Status)
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	svc := users.NewService(newMemUserRepo(), 3)
	createTestUser(t, svc, "ana")
	if _, err := svc.Create(context.Background(), users.CreateInput{
		FullName: "Other",
		Username: "ana",
		Password: "long-enough",
	}); !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestFailedLoginLocksAtThreshold(t *testing.T) {
	repo := newMemUserRepo()
	svc := users.NewService(repo, 3)
	user := createTestUser(t, svc, "ana")

	for i := 1; i <= 2; i++ {
		var err error
		user, err = svc.RecordFailedLogin(context.Background(), user)
		if err != nil {
			t.Fatalf("failed login %d: %v", i, err)
		}
		if user.Status != users.StatusActive {
			t.Fatalf("locked after %d attempts, threshold is 3", i)
		}
	}
	user, err := svc.RecordFailedLogin(context.Background(), user)
	if err != nil {
		t.Fatalf("third failed login: %v", err)
	}
	if user.Status != users.StatusLocked {
		t.Fatalf("status after third failure = %q, want locked", user.Status)
	}

	stored, err := svc.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != users.StatusLocked || stored.FailedAttempts != 3 {
		t.Fatalf("persisted state = %q/%d", stored.Status, stored.FailedAttempts)
	}
}

func TestReactivationResetsCounter(t *testing.T) {
	repo := newMemUserRepo()
	svc := users.NewService(repo, 3)
	user := createTestUser(t, svc, "ana")
	for i := 0; i < 3; i++ {
		var err error
		user, err = svc.RecordFailedLogin(context.Background(), user)
		if err != nil {
			t.Fatalf("failed login: %v", err)
		}
	}

	updated, err := svc.Update(context.Background(), user.ID, users.UpdateInput{
		FullName: user.FullName,
		RoleID:   user.RoleID,
		Status:   users.StatusActive,
	})
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if updated.Status != users.StatusActive || updated.FailedAttempts != 0 {
		t.Fatalf("after reactivation = %q/%d", updated.Status, updated.FailedAttempts)
	}
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	repo := newMemUserRepo()
	svc := users.NewService(repo, 3)
	user := createTestUser(t, svc, "ana")
	user, err := svc.RecordFailedLogin(context.Background(), user)
	if err != nil {
		t.Fatalf("failed login: %v", err)
	}

	user, err = svc.RecordSuccessfulLogin(context.Background(), user)
	if err != nil {
		t.Fatalf("successful login: %v", err)
	}
	if user.FailedAttempts != 0 {
		t.Fatalf("counter not reset, got %d", user.FailedAttempts)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("last login not stamped")
	}
}

func TestRoleIDForUserAbsent(t *testing.T) {
	svc := users.NewService(newMemUserRepo(), 3)
	_, ok, err := svc.RoleIDForUser(context.Background(), 404)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("missing user reported as present")
	}
}

func TestActorNameFallback(t *testing.T) {
	svc := users.NewService(newMemUserRepo(), 3)
	if name := svc.ActorName(context.Background(), 404); name != "unknown" {
		t.Fatalf("fallback actor name = %q", name)
	}
}
