package users

import "time"

// Status is a user account state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusLocked   Status = "locked"
)

// Valid reports whether the status belongs to the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusLocked:
		return true
	}
	return false
}

// User is a back-office account. RoleID is a weak reference: deleting the
// role leaves it dangling, which resolves to no permissions.
type User struct {
	ID                 int64      `json:"id"`
	FullName           string     `json:"full_name"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	RoleID             int64      `json:"role_id"`
	Status             Status     `json:"status"`
	Department         string     `json:"department,omitempty"`
	Location           string     `json:"location,omitempty"`
	FailedAttempts     int        `json:"failed_attempts"`
	MustChangePassword bool       `json:"must_change_password"`
	PasswordHash       string     `json:"-"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
