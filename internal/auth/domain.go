package auth

import "time"

// SessionRecord mirrors a server-side session row. Redis holds the live
// session payload; these rows exist for sweeps and forced logout.
type SessionRecord struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
	CreatedAt time.Time
}
