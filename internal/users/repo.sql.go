package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

const userColumns = `id, full_name, username, email, phone, role_id, status, department, location,
	failed_attempts, must_change_password, password_hash, last_login_at, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users in insertion order.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
		}
		return User{}, err
	}
	return user, nil
}

// GetUserByUsername fetches a user by exact username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %q", shared.ErrNotFound, username)
		}
		return User{}, err
	}
	return user, nil
}

// CreateUser inserts a user and returns it with its assigned id.
func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (full_name, username, email, phone, role_id, status, department, location,
			failed_attempts, must_change_password, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, NOW(), NOW())
		 RETURNING `+userColumns,
		user.FullName, user.Username, user.Email, user.Phone, user.RoleID, string(user.Status),
		user.Department, user.Location, user.MustChangePassword, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("%w: username %q", shared.ErrDuplicate, user.Username)
		}
		return User{}, err
	}
	return created, nil
}

// UpdateUser replaces the stored profile fields.
func (r *Repository) UpdateUser(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET full_name = $2, email = $3, phone = $4, role_id = $5, status = $6,
			department = $7, location = $8, failed_attempts = $9, must_change_password = $10,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		user.ID, user.FullName, user.Email, user.Phone, user.RoleID, string(user.Status),
		user.Department, user.Location, user.FailedAttempts, user.MustChangePassword)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, user.ID)
		}
		return User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user row.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return nil
}

// UpdateLoginState persists the fields the login flow mutates.
func (r *Repository) UpdateLoginState(ctx context.Context, id int64, failedAttempts int, status Status, lastLoginAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_attempts = $2, status = $3, last_login_at = COALESCE($4, last_login_at), updated_at = NOW() WHERE id = $1`,
		id, failedAttempts, string(status), lastLoginAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var status string
	if err := row.Scan(&user.ID, &user.FullName, &user.Username, &user.Email, &user.Phone,
		&user.RoleID, &status, &user.Department, &user.Location, &user.FailedAttempts,
		&user.MustChangePassword, &user.PasswordHash, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Status = Status(status)
	return user, nil
}
