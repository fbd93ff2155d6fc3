package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	ListClients(ctx context.Context) ([]*models.ClientListItem, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, external_id, email, name, role, organization_id, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.OrganizationID,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Returns ErrDuplicate if the external id or
// email is already taken.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, external_id, email, name, role, organization_id, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = models.NormalizeEmail(user.Email)

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.Role,
		user.OrganizationID,
		user.LastLoginAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

// GetByID retrieves a user by ID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByExternalID retrieves a user by identity provider subject.
func (r *userRepo) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, externalID))
}

// GetByEmail retrieves a user by normalized email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

// Update writes the mutable user fields, including the external id.
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET external_id = $2, email = $3, name = $4, role = $5, organization_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	user.Email = models.NormalizeEmail(user.Email)

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.Role,
		user.OrganizationID,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return translate(err)
}

// UpdateLastLogin records a successful login.
func (r *userRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

// ListClients returns CLIENT and VIEWER users with their organization name,
// newest first.
func (r *userRepo) ListClients(ctx context.Context) ([]*models.ClientListItem, error) {
	query := `
		SELECT u.id, u.external_id, u.email, u.name, u.role, u.organization_id, u.last_login_at,
		       u.created_at, u.updated_at, o.name
		FROM users u
		LEFT JOIN organizations o ON o.id = u.organization_id
		WHERE u.role IN ('CLIENT', 'VIEWER')
		ORDER BY u.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.ClientListItem
	for rows.Next() {
		var c models.ClientListItem
		if err := rows.Scan(
			&c.ID,
			&c.ExternalID,
			&c.Email,
			&c.Name,
			&c.Role,
			&c.OrganizationID,
			&c.LastLoginAt,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.OrganizationName,
		); err != nil {
			return nil, err
		}
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}

// Compile-time check.
var _ UserRepository = (*userRepo)(nil)
