package shipments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cargodesk-erp/cargodesk-erp/internal/audit"
	"github.com/cargodesk-erp/cargodesk-erp/internal/platform/httpx"
	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// ActorNamer resolves the acting user's display name for audit capture.
type ActorNamer interface {
	ActorName(ctx context.Context, userID int64) string
}

// Handler manages shipment endpoints. Every route is permission-guarded
// and every mutation is audited; this is the contract all CRUD modules of
// the application share.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	audit       *audit.Recorder
	guard       *rbac.Middleware
	actors      ActorNamer
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds a Handler instance. idempotency may be nil in tests.
func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder, guard *rbac.Middleware, actors ActorNamer, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		audit:       recorder,
		guard:       guard,
		actors:      actors,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers shipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleFreight, rbac.ActionView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleFreight, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleFreight, rbac.ActionEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleFreight, rbac.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status:  ShipmentStatus(q.Get("status")),
		Carrier: q.Get("carrier"),
		Search:  q.Get("q"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil {
		filters.PerPage = v
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list shipments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"shipments": list,
		"paging":    shared.NewPagination(filters.Page, filters.PerPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shipment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipment)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if h.idempotency != nil {
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			if err := h.idempotency.CheckAndInsert(r.Context(), key, "shipments.create"); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
	}
	shipment, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Created Shipment", fmt.Sprintf("shipment %q (%s -> %s)", shipment.Reference, shipment.Origin, shipment.Destination))
	httpx.JSON(w, http.StatusCreated, shipment)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateShipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shipment, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Updated Shipment", fmt.Sprintf("shipment %q status %s", shipment.Reference, shipment.Status))
	httpx.JSON(w, http.StatusOK, shipment)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shipment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Deleted Shipment", fmt.Sprintf("shipment %q", shipment.Reference))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, action, details string) {
	actor := "unknown"
	if userID, ok := shared.SessionUserID(r.Context()); ok && h.actors != nil {
		actor = h.actors.ActorName(r.Context(), userID)
	}
	h.audit.Record(actor, string(rbac.ModuleFreight), action, details, audit.OutcomeSuccess)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
