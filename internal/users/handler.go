package users

import (
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

// Handler manages user directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *audit.Recorder
	guard     *rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder, guard *rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		audit:     recorder,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers user directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleHR, rbac.ActionView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleHR, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleHR, rbac.ActionEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.ModuleHR, rbac.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

type createUserRequest struct {
	FullName           string `json:"full_name" validate:"required"`
	Username           string `json:"username" validate:"required,min=3"`
	Email              string `json:"email" validate:"omitempty,email"`
	Phone              string `json:"phone"`
	RoleID             int64  `json:"role_id" validate:"required,gt=0"`
	Department         string `json:"department"`
	Location           string `json:"location"`
	Password           string `json:"password" validate:"required,min=8"`
	MustChangePassword bool   `json:"must_change_password"`
}

type updateUserRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone"`
	RoleID     int64  `json:"role_id" validate:"required,gt=0"`
	Department string `json:"department"`
	Location   string `json:"location"`
	Status     Status `json:"status" validate:"omitempty,oneof=active inactive locked"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		FullName:           req.FullName,
		Username:           req.Username,
		Email:              req.Email,
		Phone:              req.Phone,
		RoleID:             req.RoleID,
		Department:         req.Department,
		Location:           req.Location,
		Password:           req.Password,
		MustChangePassword: req.MustChangePassword,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Created User", fmt.Sprintf("user %q (%s)", user.FullName, user.Username))
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Update(r.Context(), id, UpdateInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		RoleID:     req.RoleID,
		Department: req.Department,
		Location:   req.Location,
		Status:     req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Updated User", fmt.Sprintf("user %q (%s)", user.FullName, user.Username))
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "Deleted User", fmt.Sprintf("user %q (%s)", user.FullName, user.Username))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, action, details string) {
	actor := "unknown"
	if userID, ok := shared.SessionUserID(r.Context()); ok {
		actor = h.service.ActorName(r.Context(), userID)
	}
	h.audit.Record(actor, string(rbac.ModuleHR), action, details, audit.OutcomeSuccess)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
