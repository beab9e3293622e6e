package rbac

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
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// ActorNamer resolves the acting user's display name for audit capture.
type ActorNamer interface {
	ActorName(ctx context.Context, userID int64) string
}

// Handler manages role registry endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *audit.Recorder
	guard     *Middleware
	actors    ActorNamer
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder, guard *Middleware, actors ActorNamer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		audit:     recorder,
		guard:     guard,
		actors:    actors,
		validator: validator.New(),
	}
}

// MountRoutes registers role registry routes. Role management lives under
// the settings module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(ModuleSettings, ActionView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(ModuleSettings, ActionCreate))
		r.Post("/", h.create)
		r.Post("/{id}/clone", h.clone)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(ModuleSettings, ActionEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(ModuleSettings, ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Matrix      Matrix `json:"matrix"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.Create(r.Context(), req.Name, req.Description, req.Matrix)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Created Role", fmt.Sprintf("role %q", role.Name))
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.Update(r.Context(), id, req.Name, req.Description, req.Matrix)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Updated Role", fmt.Sprintf("role %q", role.Name))
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) clone(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Clone(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Cloned Role", fmt.Sprintf("role %q", role.Name))
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Deleted Role", fmt.Sprintf("role %q", role.Name))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, action, details string) {
	actor := "unknown"
	if userID, ok := shared.SessionUserID(r.Context()); ok && h.actors != nil {
		actor = h.actors.ActorName(r.Context(), userID)
	}
	h.audit.Record(actor, string(ModuleSettings), action, details, audit.OutcomeSuccess)
}

func (h *Handler) pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
