package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// RoleLookup resolves the role reference for a user. The second return is
// false when the user does not exist.
type RoleLookup interface {
	RoleIDForUser(ctx context.Context, userID int64) (int64, bool, error)
}

// Middleware guards routes with (module, action) permission checks.
type Middleware struct {
	Registry *Service
	Users    RoleLookup
	Logger   *slog.Logger

	group singleflight.Group
}

// Require ensures the current user's role grants the action on the module.
// Missing session yields 401; a denied or dangling role yields 403.
func (m *Middleware) Require(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.SessionUserID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			role, err := m.ResolveRole(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac resolve role", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !CanPerform(role, module, action) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveRole loads the role for a user. A deleted user, a user without a
// role or a dangling role reference all resolve to nil, never an error.
// Concurrent lookups for the same user are collapsed.
func (m *Middleware) ResolveRole(ctx context.Context, userID int64) (*Role, error) {
	v, err, _ := m.group.Do(fmt.Sprintf("user:%d", userID), func() (any, error) {
		roleID, ok, err := m.Users.RoleIDForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok || roleID == 0 {
			return (*Role)(nil), nil
		}
		role, err := m.Registry.Get(ctx, roleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return (*Role)(nil), nil
			}
			return nil, err
		}
		return &role, nil
	})
	if err != nil {
		return nil, err
	}
	role, _ := v.(*Role)
	return role, nil
}
