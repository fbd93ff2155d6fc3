package service

import (
	"context"
	"time"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

const (
	// defaultMetricsWindow applies when a query gives no start date.
	defaultMetricsWindow = 30 * 24 * time.Hour
	maxMetricsWindow     = 366 * 24 * time.Hour
)

// MetricsService reads dashboard metrics. Callers authorize the website first.
type MetricsService interface {
	SEO(ctx context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error)
	PPC(ctx context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error)
}

type metricsService struct {
	metricsRepo repository.MetricsRepository
	now         func() time.Time
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(metricsRepo repository.MetricsRepository) MetricsService {
	return &metricsService{metricsRepo: metricsRepo, now: time.Now}
}

// normalize fills in a missing range and rejects inverted or oversized ones.
func (s *metricsService) normalize(q models.MetricsQuery) (models.MetricsQuery, error) {
	if q.To.IsZero() {
		q.To = s.now().UTC().Truncate(24 * time.Hour)
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-defaultMetricsWindow)
	}
	if q.From.After(q.To) {
		return q, apierrors.NewValidationError("startDate", "startDate must not be after endDate")
	}
	if q.To.Sub(q.From) > maxMetricsWindow {
		return q, apierrors.NewValidationError("startDate", "date range must not exceed 366 days")
	}
	if q.Platform != nil && !q.Platform.IsValid() {
		return q, apierrors.NewValidationError("platform", "unknown platform")
	}
	return q, nil
}

func (s *metricsService) SEO(ctx context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.metricsRepo.ListSEO(ctx, q)
	if err != nil {
		return nil, apierrors.NewStorageError("list seo metrics", err)
	}
	if rows == nil {
		rows = []*models.SEOMetric{}
	}
	return rows, nil
}

func (s *metricsService) PPC(ctx context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.metricsRepo.ListPPC(ctx, q)
	if err != nil {
		return nil, apierrors.NewStorageError("list ppc metrics", err)
	}
	if rows == nil {
		rows = []*models.PPCMetric{}
	}
	return rows, nil
}

var _ MetricsService = (*metricsService)(nil)
