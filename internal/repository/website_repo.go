package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// WebsiteRepository defines the interface for website data operations.
type WebsiteRepository interface {
	Create(ctx context.Context, site *models.Website) error
	// CreateWithMemberGrants inserts site and grants view access to every
	// member of its organization in one transaction. It returns the number
	// of grants created.
	CreateWithMemberGrants(ctx context.Context, site *models.Website) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Website, error)
	GetByDomain(ctx context.Context, domain string) (*models.Website, error)
	ListWithCounts(ctx context.Context) ([]*models.WebsiteSummary, error)
	ListAll(ctx context.Context) ([]*models.Website, error)
	ListAccessible(ctx context.Context, userID uuid.UUID) ([]*models.Website, error)
}

type websiteRepo struct {
	pool *pgxpool.Pool
}

// NewWebsiteRepository creates a new website repository.
func NewWebsiteRepository(pool *pgxpool.Pool) WebsiteRepository {
	return &websiteRepo{pool: pool}
}

const websiteColumns = `w.id, w.organization_id, w.name, w.domain, w.url, w.description, w.industry, w.country,
	w.is_active, w.google_analytics_id, w.google_ads_id, w.facebook_pixel_id, w.created_at, w.updated_at`

func websiteDest(w *models.Website) []any {
	return []any{
		&w.ID,
		&w.OrganizationID,
		&w.Name,
		&w.Domain,
		&w.URL,
		&w.Description,
		&w.Industry,
		&w.Country,
		&w.IsActive,
		&w.GoogleAnalyticsID,
		&w.GoogleAdsID,
		&w.FacebookPixelID,
		&w.CreatedAt,
		&w.UpdatedAt,
	}
}

func scanWebsite(row pgx.Row) (*models.Website, error) {
	var w models.Website
	err := row.Scan(websiteDest(&w)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func collectWebsites(rows pgx.Rows) ([]*models.Website, error) {
	defer rows.Close()
	var sites []*models.Website
	for rows.Next() {
		var w models.Website
		if err := rows.Scan(websiteDest(&w)...); err != nil {
			return nil, err
		}
		sites = append(sites, &w)
	}
	return sites, rows.Err()
}

// Create inserts a new website. Returns ErrDuplicate if the domain is taken
// and ErrMissingReference if the organization does not exist.
func (r *websiteRepo) Create(ctx context.Context, site *models.Website) error {
	return insertWebsite(ctx, r.pool, site)
}

// CreateWithMemberGrants inserts site and its organization member grants
// atomically, so a failed grant leaves no website behind.
func (r *websiteRepo) CreateWithMemberGrants(ctx context.Context, site *models.Website) (int64, error) {
	var granted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertWebsite(ctx, tx, site); err != nil {
			return err
		}
		n, err := grantOrganizationMembers(ctx, tx, site.OrganizationID, site.ID)
		if err != nil {
			return err
		}
		granted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

func insertWebsite(ctx context.Context, q querier, site *models.Website) error {
	query := `
		INSERT INTO websites (id, organization_id, name, domain, url, description, industry, country,
		                      is_active, google_analytics_id, google_ads_id, facebook_pixel_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	if site.Country == "" {
		site.Country = "US"
	}

	err := q.QueryRow(ctx, query,
		site.ID,
		site.OrganizationID,
		site.Name,
		site.Domain,
		site.URL,
		site.Description,
		site.Industry,
		site.Country,
		site.IsActive,
		site.GoogleAnalyticsID,
		site.GoogleAdsID,
		site.FacebookPixelID,
	).Scan(&site.CreatedAt, &site.UpdatedAt)
	return translate(err)
}

// GetByID retrieves a website by ID.
func (r *websiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Website, error) {
	return scanWebsite(r.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites w WHERE w.id = $1`, id))
}

// GetByDomain retrieves a website by its host name.
func (r *websiteRepo) GetByDomain(ctx context.Context, domain string) (*models.Website, error) {
	return scanWebsite(r.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites w WHERE w.domain = $1`, domain))
}

// ListWithCounts lists websites with organization name and grant count, newest first.
func (r *websiteRepo) ListWithCounts(ctx context.Context) ([]*models.WebsiteSummary, error) {
	query := `
		SELECT ` + websiteColumns + `, o.name,
		       (SELECT COUNT(*) FROM website_access a WHERE a.website_id = w.id)
		FROM websites w
		JOIN organizations o ON o.id = w.organization_id
		ORDER BY w.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.WebsiteSummary
	for rows.Next() {
		var s models.WebsiteSummary
		dest := append(websiteDest(&s.Website), &s.OrganizationName, &s.AccessCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		sites = append(sites, &s)
	}
	return sites, rows.Err()
}

// ListAll returns every website ordered by name.
func (r *websiteRepo) ListAll(ctx context.Context) ([]*models.Website, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+websiteColumns+` FROM websites w ORDER BY w.name`)
	if err != nil {
		return nil, err
	}
	return collectWebsites(rows)
}

// ListAccessible returns the websites a user holds a view grant for.
func (r *websiteRepo) ListAccessible(ctx context.Context, userID uuid.UUID) ([]*models.Website, error) {
	query := `
		SELECT ` + websiteColumns + `
		FROM websites w
		JOIN website_access a ON a.website_id = w.id
		WHERE a.user_id = $1 AND a.can_view
		ORDER BY w.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectWebsites(rows)
}

var _ WebsiteRepository = (*websiteRepo)(nil)
