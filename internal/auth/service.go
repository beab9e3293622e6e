package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cargodesk-erp/cargodesk-erp/internal/audit"
	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	"github.com/cargodesk-erp/cargodesk-erp/internal/users"
)

// FailureCounter counts rejected login attempts.
type FailureCounter interface {
	Inc()
}

// Service wraps authentication business rules. Login transitions for the
// same username are serialized so concurrent attempts cannot corrupt the
// failed-attempt counter.
type Service struct {
	users    *users.Service
	registry *rbac.Service
	sessions RepositoryPort
	audit    *audit.Recorder
	failures FailureCounter

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewService constructs a new Service. failures may be nil.
func NewService(userSvc *users.Service, registry *rbac.Service, sessions RepositoryPort, recorder *audit.Recorder, failures FailureCounter) *Service {
	return &Service{
		users:    userSvc,
		registry: registry,
		sessions: sessions,
		audit:    recorder,
		failures: failures,
		inflight: make(map[string]*sync.Mutex),
	}
}

// Login validates username/password credentials. Unknown user, wrong
// password, locked and inactive accounts all fail with
// shared.ErrInvalidCredentials; a failed login is an expected outcome, not
// an exceptional one. Every attempt leaves an audit entry.
func (s *Service) Login(ctx context.Context, username, password string) (users.User, error) {
	unlock := s.lockUsername(username)
	defer unlock()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.loginFailed(username, "unknown username")
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if user.Status == users.StatusLocked {
		s.loginFailed(user.FullName, "account locked")
		return users.User{}, shared.ErrInvalidCredentials
	}
	if user.Status == users.StatusInactive {
		s.loginFailed(user.FullName, "account inactive")
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		updated, recErr := s.users.RecordFailedLogin(ctx, user)
		if recErr != nil {
			return users.User{}, recErr
		}
		detail := fmt.Sprintf("wrong password, attempt %d", updated.FailedAttempts)
		if updated.Status == users.StatusLocked {
			detail = "wrong password, account now locked"
		}
		s.loginFailed(user.FullName, detail)
		return users.User{}, shared.ErrInvalidCredentials
	}

	updated, err := s.users.RecordSuccessfulLogin(ctx, user)
	if err != nil {
		return users.User{}, err
	}
	s.audit.Record(updated.FullName, string(rbac.ModuleSettings), "User Login", "signed in", audit.OutcomeSuccess)
	return updated, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

// RecordLogout writes the logout audit entry.
func (s *Service) RecordLogout(ctx context.Context, userID int64) {
	name := s.users.ActorName(ctx, userID)
	s.audit.Record(name, string(rbac.ModuleSettings), "User Logout", "signed out", audit.OutcomeSuccess)
}

// CurrentUser resolves the authenticated user from the request session.
// Absent or stale sessions yield nil, never an error.
func (s *Service) CurrentUser(ctx context.Context) (*users.User, error) {
	userID, ok := shared.SessionUserID(ctx)
	if !ok {
		return nil, nil
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CurrentRole resolves the authenticated user's role. A dangling role
// reference yields nil: a user pointing at a deleted role has no
// permissions at all.
func (s *Service) CurrentRole(ctx context.Context) (*rbac.Role, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil || user == nil {
		return nil, err
	}
	return s.CurrentRoleFor(ctx, *user)
}

// CurrentRoleFor resolves the role for an already-loaded user, treating a
// dangling reference as no role.
func (s *Service) CurrentRoleFor(ctx context.Context, user users.User) (*rbac.Role, error) {
	if user.RoleID == 0 {
		return nil, nil
	}
	role, err := s.registry.Get(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (s *Service) loginFailed(actor, detail string) {
	if s.failures != nil {
		s.failures.Inc()
	}
	s.audit.Record(actor, string(rbac.ModuleSettings), "User Login", detail, audit.OutcomeFailure)
}

// lockUsername serializes login transitions per username.
func (s *Service) lockUsername(username string) func() {
	s.mu.Lock()
	m, ok := s.inflight[username]
	if !ok {
		m = &sync.Mutex{}
		s.inflight[username] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}
