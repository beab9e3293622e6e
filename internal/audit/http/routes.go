package audithttp

import (
	"github.com/go-chi/chi/v5"

	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
)

// MountRoutes registers the audit viewer under the given router. The trail
// is readable by anyone holding settings.view; export additionally needs
// settings.export.
func (h *Handler) MountRoutes(r chi.Router, guard *rbac.Middleware) {
	r.Route("/audit", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.ModuleSettings, rbac.ActionView))
			r.Get("/", h.list)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(rbac.ModuleSettings, rbac.ActionExport))
			r.Get("/export.csv", h.exportCSV)
		})
	})
}
