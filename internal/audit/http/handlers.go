package audithttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cargodesk-erp/cargodesk-erp/internal/audit"
	"github.com/cargodesk-erp/cargodesk-erp/internal/platform/httpx"
)

// Handler exposes the read-only audit trail viewer.
type Handler struct {
	logger  *slog.Logger
	service *audit.Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *audit.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("audit list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Export(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	if err := audit.WriteCSV(w, entries); err != nil {
		h.logger.Error("audit csv write", slog.Any("error", err))
	}
}

func filtersFromQuery(r *http.Request) audit.Filters {
	q := r.URL.Query()
	filters := audit.Filters{
		Actor:   q.Get("actor"),
		Module:  q.Get("module"),
		Outcome: audit.Outcome(q.Get("outcome")),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filters.PageSize = v
	}
	return filters
}
