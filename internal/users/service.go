package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdateLoginState(ctx context.Context, id int64, failedAttempts int, status Status, lastLoginAt *time.Time) error
}

// CreateInput carries the administrator-supplied fields for a new account.
type CreateInput struct {
	FullName           string
	Username           string
	Email              string
	Phone              string
	RoleID             int64
	Department         string
	Location           string
	Password           string
	MustChangePassword bool
}

// UpdateInput carries the editable profile fields.
type UpdateInput struct {
	FullName   string
	Email      string
	Phone      string
	RoleID     int64
	Department string
	Location   string
	Status     Status
}

// Service handles user directory business logic.
type Service struct {
	repo        RepositoryPort
	maxAttempts int
}

// NewService builds a Service. maxAttempts is the failed-login threshold
// after which an account locks; values below one fall back to 3.
func NewService(repo RepositoryPort, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Service{repo: repo, maxAttempts: maxAttempts}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetByUsername fetches a user by exact, case-sensitive username.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

// Create registers a new account with a bcrypt-hashed initial password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	if strings.TrimSpace(input.FullName) == "" {
		return User{}, fmt.Errorf("%w: full name required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Username) == "" {
		return User{}, fmt.Errorf("%w: username required", shared.ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		FullName:           strings.TrimSpace(input.FullName),
		Username:           input.Username,
		Email:              strings.TrimSpace(input.Email),
		Phone:              strings.TrimSpace(input.Phone),
		RoleID:             input.RoleID,
		Status:             StatusActive,
		Department:         strings.TrimSpace(input.Department),
		Location:           strings.TrimSpace(input.Location),
		MustChangePassword: input.MustChangePassword,
		PasswordHash:       string(hash),
	}
	return s.repo.CreateUser(ctx, user)
}

// Update replaces the editable profile fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	if strings.TrimSpace(input.FullName) == "" {
		return User{}, fmt.Errorf("%w: full name required", shared.ErrValidation)
	}
	if input.Status != "" && !input.Status.Valid() {
		return User{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, input.Status)
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.FullName = strings.TrimSpace(input.FullName)
	user.Email = strings.TrimSpace(input.Email)
	user.Phone = strings.TrimSpace(input.Phone)
	user.RoleID = input.RoleID
	user.Department = strings.TrimSpace(input.Department)
	user.Location = strings.TrimSpace(input.Location)
	if input.Status != "" {
		user.Status = input.Status
		if input.Status == StatusActive {
			user.FailedAttempts = 0
		}
	}
	return s.repo.UpdateUser(ctx, user)
}

// Delete removes a user row. Audit entries keep only the captured actor
// name, so history survives the removal.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// RoleIDForUser resolves a user's role reference for the route guard.
// Unknown users are reported as absent, not as an error.
func (s *Service) RoleIDForUser(ctx context.Context, userID int64) (int64, bool, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return user.RoleID, true, nil
}

// ActorName resolves a user's display name for audit capture. Falls back
// to "unknown" so audit writes never depend on directory state.
func (s *Service) ActorName(ctx context.Context, userID int64) string {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "unknown"
	}
	return user.FullName
}

// RecordFailedLogin increments the failed-attempt counter and locks the
// account once the threshold is reached. Returns the updated user.
func (s *Service) RecordFailedLogin(ctx context.Context, user User) (User, error) {
	user.FailedAttempts++
	if user.FailedAttempts >= s.maxAttempts && user.Status == StatusActive {
		user.Status = StatusLocked
	}
	if err := s.repo.UpdateLoginState(ctx, user.ID, user.FailedAttempts, user.Status, user.LastLoginAt); err != nil {
		return User{}, err
	}
	return user, nil
}

// RecordSuccessfulLogin resets the counter and stamps the login time.
func (s *Service) RecordSuccessfulLogin(ctx context.Context, user User) (User, error) {
	now := time.Now().UTC()
	user.FailedAttempts = 0
	user.LastLoginAt = &now
	if err := s.repo.UpdateLoginState(ctx, user.ID, 0, user.Status, &now); err != nil {
		return User{}, err
	}
	return user, nil
}
