package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// MetricsRepository reads daily SEO and PPC metrics.
type MetricsRepository interface {
	ListSEO(ctx context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error)
	ListPPC(ctx context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error)
}

type metricsRepo struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository creates a new metrics repository.
func NewMetricsRepository(pool *pgxpool.Pool) MetricsRepository {
	return &metricsRepo{pool: pool}
}

// ListSEO returns a website's SEO rows within the query range, oldest first.
func (r *metricsRepo) ListSEO(ctx context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error) {
	query := `
		SELECT id, website_id, date, organic_sessions, organic_users, organic_pageviews,
		       avg_session_duration, bounce_rate, avg_position, total_clicks, total_impressions,
		       ctr, goal_completions, goal_conversion_rate, top_pages, top_keywords
		FROM seo_metrics
		WHERE website_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`

	rows, err := r.pool.Query(ctx, query, q.WebsiteID, q.From, q.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SEOMetric
	for rows.Next() {
		var m models.SEOMetric
		if err := rows.Scan(
			&m.ID,
			&m.WebsiteID,
			&m.Date,
			&m.OrganicSessions,
			&m.OrganicUsers,
			&m.OrganicPageviews,
			&m.AvgSessionDuration,
			&m.BounceRate,
			&m.AvgPosition,
			&m.TotalClicks,
			&m.TotalImpressions,
			&m.CTR,
			&m.GoalCompletions,
			&m.GoalConversionRate,
			&m.TopPages,
			&m.TopKeywords,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ListPPC returns a website's PPC rows within the query range, optionally
// filtered by platform, oldest first.
func (r *metricsRepo) ListPPC(ctx context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error) {
	query := `
		SELECT m.id, c.website_id, c.id, c.name, m.date, c.platform, m.impressions, m.clicks, m.ctr,
		       m.cost::float8, m.cpc::float8, m.cpm::float8, m.conversions, m.conversion_rate,
		       m.conversion_value::float8, m.cost_per_conversion::float8, m.quality_score,
		       m.revenue::float8, m.roas, m.profit::float8
		FROM ppc_metrics m
		JOIN ppc_campaigns c ON c.id = m.campaign_id
		WHERE c.website_id = $1 AND m.date BETWEEN $2 AND $3
		  AND ($4::ppc_platform IS NULL OR c.platform = $4)
		ORDER BY m.date, c.name`

	var platform *string
	if q.Platform != nil {
		p := string(*q.Platform)
		platform = &p
	}

	rows, err := r.pool.Query(ctx, query, q.WebsiteID, q.From, q.To, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PPCMetric
	for rows.Next() {
		var m models.PPCMetric
		if err := rows.Scan(
			&m.ID,
			&m.WebsiteID,
			&m.CampaignID,
			&m.CampaignName,
			&m.Date,
			&m.Platform,
			&m.Impressions,
			&m.Clicks,
			&m.CTR,
			&m.Cost,
			&m.CPC,
			&m.CPM,
			&m.Conversions,
			&m.ConversionRate,
			&m.ConversionValue,
			&m.CostPerConversion,
			&m.QualityScore,
			&m.Revenue,
			&m.ROAS,
			&m.Profit,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

var _ MetricsRepository = (*metricsRepo)(nil)
