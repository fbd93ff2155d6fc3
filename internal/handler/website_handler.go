package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/middleware"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

// WebsiteHandler handles website administration and grants.
type WebsiteHandler struct {
	websiteService service.WebsiteService
	accessService  service.AccessService
	policy         middleware.Authorizer
	validate       *validator.Validate
	logger         *slog.Logger
}

// NewWebsiteHandler creates a new website handler.
func NewWebsiteHandler(
	websiteService service.WebsiteService,
	accessService service.AccessService,
	policy middleware.Authorizer,
	logger *slog.Logger,
) *WebsiteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsiteHandler{
		websiteService: websiteService,
		accessService:  accessService,
		policy:         policy,
		validate:       newValidator(),
		logger:         logger,
	}
}

// Routes returns a chi router with website routes.
func (h *WebsiteHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireAction(h.policy, authz.WebsiteList, nil)).Get("/", h.List)
	r.With(middleware.RequireAction(h.policy, authz.WebsiteCreate, nil)).Post("/", h.Create)

	// Grants
	r.With(middleware.RequireAction(h.policy, authz.AccessGrant, nil)).Post("/{id}/access", h.GrantAccess)
	r.With(middleware.RequireAction(h.policy, authz.AccessRevoke, nil)).Delete("/{id}/access/{userID}", h.RevokeAccess)

	return r
}

// List handles GET /api/websites
func (h *WebsiteHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.websiteService.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, sites)
}

// Create handles POST /api/websites
func (h *WebsiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateWebsiteRequest
	if err := decodeJSON(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	site, err := h.websiteService.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, site)
}

// GrantAccess handles POST /api/websites/{id}/access
func (h *WebsiteHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	websiteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req service.GrantAccessRequest
	if err := decodeJSON(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	access, err := h.accessService.Grant(r.Context(), websiteID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, access)
}

// RevokeAccess handles DELETE /api/websites/{id}/access/{userID}
func (h *WebsiteHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	websiteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("userID", "invalid UUID format"))
		return
	}

	if err := h.accessService.Revoke(r.Context(), websiteID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
