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

// ClientHandler handles client user administration.
type ClientHandler struct {
	clientService service.ClientService
	policy        middleware.Authorizer
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewClientHandler creates a new client handler.
func NewClientHandler(clientService service.ClientService, policy middleware.Authorizer, logger *slog.Logger) *ClientHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientHandler{
		clientService: clientService,
		policy:        policy,
		validate:      newValidator(),
		logger:        logger,
	}
}

// Routes returns a chi router with client routes.
func (h *ClientHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireAction(h.policy, authz.ClientList, nil)).Get("/", h.List)
	r.With(middleware.RequireAction(h.policy, authz.ClientCreate, nil)).Post("/", h.Invite)

	return r
}

// List handles GET /api/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientService.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, clients)
}

// Invite handles POST /api/clients
func (h *ClientHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req service.InviteClientRequest
	if err := decodeJSON(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	user, err := h.clientService.Invite(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, user)
}
