package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// AccessRepository defines the interface for website grant operations.
type AccessRepository interface {
	Get(ctx context.Context, userID, websiteID uuid.UUID) (*models.WebsiteAccess, error)
	Grant(ctx context.Context, access *models.WebsiteAccess) error
	Revoke(ctx context.Context, userID, websiteID uuid.UUID) (bool, error)
}

type accessRepo struct {
	pool *pgxpool.Pool
}

// NewAccessRepository creates a new website access repository.
func NewAccessRepository(pool *pgxpool.Pool) AccessRepository {
	return &accessRepo{pool: pool}
}

// Get returns the grant for a user and website, or nil if none exists.
func (r *accessRepo) Get(ctx context.Context, userID, websiteID uuid.UUID) (*models.WebsiteAccess, error) {
	query := `
		SELECT user_id, website_id, can_view, can_edit, created_at
		FROM website_access WHERE user_id = $1 AND website_id = $2`

	var a models.WebsiteAccess
	err := r.pool.QueryRow(ctx, query, userID, websiteID).Scan(
		&a.UserID,
		&a.WebsiteID,
		&a.CanView,
		&a.CanEdit,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Grant creates or replaces a grant. Returns ErrMissingReference if the
// user or website does not exist.
func (r *accessRepo) Grant(ctx context.Context, access *models.WebsiteAccess) error {
	query := `
		INSERT INTO website_access (user_id, website_id, can_view, can_edit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, website_id)
		DO UPDATE SET can_view = EXCLUDED.can_view, can_edit = EXCLUDED.can_edit
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		access.UserID,
		access.WebsiteID,
		access.CanView,
		access.CanEdit,
	).Scan(&access.CreatedAt)
	return translate(err)
}

// Revoke deletes a grant and reports whether one existed.
func (r *accessRepo) Revoke(ctx context.Context, userID, websiteID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM website_access WHERE user_id = $1 AND website_id = $2`, userID, websiteID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// grantOrganizationMembers grants view access on a website to every current
// member of an organization. Existing grants are left as they are.
func grantOrganizationMembers(ctx context.Context, q querier, orgID, websiteID uuid.UUID) (int64, error) {
	query := `
		INSERT INTO website_access (user_id, website_id, can_view, can_edit)
		SELECT u.id, $2, TRUE, FALSE FROM users u WHERE u.organization_id = $1
		ON CONFLICT (user_id, website_id) DO NOTHING`

	tag, err := q.Exec(ctx, query, orgID, websiteID)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

var _ AccessRepository = (*accessRepo)(nil)
