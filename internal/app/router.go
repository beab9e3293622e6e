package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/cargodesk-erp/cargodesk-erp/internal/audit/http"
	"github.com/cargodesk-erp/cargodesk-erp/internal/auth"
	"github.com/cargodesk-erp/cargodesk-erp/internal/freight/shipments"
	"github.com/cargodesk-erp/cargodesk-erp/internal/observability"
	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	"github.com/cargodesk-erp/cargodesk-erp/internal/users"
	"github.com/cargodesk-erp/cargodesk-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	RolesHandler     *rbac.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audithttp.Handler
	ShipmentsHandler *shipments.Handler
	JobHandler       *jobs.Handler
	RBACMiddleware   *rbac.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with CargoDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Clients fetch the token here and echo it back in the CSRF header on
	// every mutating request.
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("ensure csrf token", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"` + token + `"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r, params.RBACMiddleware)
	}
	if params.ShipmentsHandler != nil {
		r.Route("/freight/shipments", params.ShipmentsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
