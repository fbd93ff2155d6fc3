package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// OrganizationRepository defines the interface for organization data operations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	ListWithCounts(ctx context.Context) ([]*models.OrganizationSummary, error)
}

type orgRepo struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &orgRepo{pool: pool}
}

// Create inserts a new organization. Returns ErrDuplicate on a name or slug clash.
func (r *orgRepo) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, description, domain, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Description,
		org.Domain,
		org.ContactEmail,
		org.ContactPhone,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	return translate(err)
}

const orgColumns = `id, name, slug, description, domain, contact_email, contact_phone, created_at, updated_at`

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Slug,
		&o.Description,
		&o.Domain,
		&o.ContactEmail,
		&o.ContactPhone,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an organization by ID.
func (r *orgRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// GetByName retrieves an organization by exact name.
func (r *orgRepo) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name))
}

// ListWithCounts lists organizations with member and website counts, newest first.
func (r *orgRepo) ListWithCounts(ctx context.Context) ([]*models.OrganizationSummary, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.description, o.domain, o.contact_email, o.contact_phone,
		       o.created_at, o.updated_at,
		       (SELECT COUNT(*) FROM users u WHERE u.organization_id = o.id),
		       (SELECT COUNT(*) FROM websites w WHERE w.organization_id = o.id)
		FROM organizations o
		ORDER BY o.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.OrganizationSummary
	for rows.Next() {
		var o models.OrganizationSummary
		if err := rows.Scan(
			&o.ID,
			&o.Name,
			&o.Slug,
			&o.Description,
			&o.Domain,
			&o.ContactEmail,
			&o.ContactPhone,
			&o.CreatedAt,
			&o.UpdatedAt,
			&o.UserCount,
			&o.WebsiteCount,
		); err != nil {
			return nil, err
		}
		orgs = append(orgs, &o)
	}
	return orgs, rows.Err()
}

var _ OrganizationRepository = (*orgRepo)(nil)
