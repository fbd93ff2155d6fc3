package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/middleware"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

const dateLayout = "2006-01-02"

// MetricsHandler serves the SEO and PPC dashboards.
type MetricsHandler struct {
	metricsService service.MetricsService
	policy         middleware.Authorizer
	logger         *slog.Logger
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(metricsService service.MetricsService, policy middleware.Authorizer, logger *slog.Logger) *MetricsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsHandler{metricsService: metricsService, policy: policy, logger: logger}
}

// Mount registers the metrics routes on r. Anonymous callers get 401 before
// any parameter is looked at.
func (h *MetricsHandler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/seo-metrics", h.SEO)
		r.Get("/ppc-metrics", h.PPC)
	})
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apierrors.NewValidationError(field, "expected YYYY-MM-DD")
	}
	return t.UTC(), nil
}

// query parses the shared query parameters and authorizes the website.
// It writes the error response itself and reports whether to continue.
func (h *MetricsHandler) query(w http.ResponseWriter, r *http.Request) (models.MetricsQuery, bool) {
	var q models.MetricsQuery
	params := r.URL.Query()

	raw := params.Get("websiteId")
	if raw == "" {
		response.Error(w, apierrors.NewValidationError("websiteId", "websiteId is required"))
		return q, false
	}
	websiteID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, apierrors.NewValidationError("websiteId", "invalid UUID format"))
		return q, false
	}
	q.WebsiteID = websiteID

	if q.From, err = parseDate("startDate", params.Get("startDate")); err != nil {
		response.Error(w, err)
		return q, false
	}
	if q.To, err = parseDate("endDate", params.Get("endDate")); err != nil {
		response.Error(w, err)
		return q, false
	}

	if !middleware.Authorize(w, r, h.policy, authz.MetricsView, authz.Website(websiteID)) {
		return q, false
	}
	return q, true
}

// SEO handles GET /api/seo-metrics
func (h *MetricsHandler) SEO(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}

	rows, err := h.metricsService.SEO(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, rows)
}

// PPC handles GET /api/ppc-metrics
func (h *MetricsHandler) PPC(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	if p := strings.TrimSpace(r.URL.Query().Get("platform")); p != "" {
		platform := models.PPCPlatform(strings.ToUpper(p))
		q.Platform = &platform
	}

	rows, err := h.metricsService.PPC(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.OK(w, rows)
}
