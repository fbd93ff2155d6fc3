package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/middleware"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

// OrganizationHandler handles organization administration.
type OrganizationHandler struct {
	orgService service.OrganizationService
	policy     middleware.Authorizer
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewOrganizationHandler creates a new organization handler.
func NewOrganizationHandler(orgService service.OrganizationService, policy middleware.Authorizer, logger *slog.Logger) *OrganizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrganizationHandler{
		orgService: orgService,
		policy:     policy,
		validate:   newValidator(),
		logger:     logger,
	}
}

// Routes returns a chi router with organization routes.
func (h *OrganizationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireAction(h.policy, authz.OrganizationList, nil)).Get("/", h.List)
	r.With(middleware.RequireAction(h.policy, authz.OrganizationCreate, nil)).Post("/", h.Create)

	return r
}

// List handles GET /api/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgService.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, orgs)
}

// Create handles POST /api/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrganizationRequest
	if err := decodeJSON(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	org, err := h.orgService.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, org)
}
