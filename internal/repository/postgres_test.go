package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakleydye/oakley-metrics/internal/config"
	"github.com/oakleydye/oakley-metrics/internal/database"
	"github.com/oakleydye/oakley-metrics/internal/models"
)

// newTestPool connects to the database named by the OAKLEY_DATABASE_*
// settings and applies migrations. Set OAKLEY_TEST_POSTGRES=1 to run.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("OAKLEY_TEST_POSTGRES") == "" {
		t.Skip("OAKLEY_TEST_POSTGRES not set")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(cfg.Database))

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db.Pool()
}

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func seedOrganization(t *testing.T, pool *pgxpool.Pool, members int) (*models.Organization, []*models.User) {
	t.Helper()
	ctx := context.Background()

	name := uniqueName("org")
	org := &models.Organization{Name: name, Slug: name}
	require.NoError(t, NewOrganizationRepository(pool).Create(ctx, org))

	users := NewUserRepository(pool)
	var out []*models.User
	for i := 0; i < members; i++ {
		id := uniqueName("user")
		u := &models.User{
			ExternalID:     "auth0|" + id,
			Email:          id + "@example.com",
			Role:           models.RoleClient,
			OrganizationID: &org.ID,
		}
		require.NoError(t, users.Create(ctx, u))
		out = append(out, u)
	}
	return org, out
}

func TestWebsiteRepo_CreateWithMemberGrants(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	sites := NewWebsiteRepository(pool)
	access := NewAccessRepository(pool)

	t.Run("grants every member view access", func(t *testing.T) {
		org, members := seedOrganization(t, pool, 3)
		site := &models.Website{OrganizationID: org.ID, Name: "Shop", Domain: uniqueName("shop") + ".example.com", IsActive: true}

		granted, err := sites.CreateWithMemberGrants(ctx, site)
		require.NoError(t, err)
		assert.Equal(t, int64(3), granted)

		for _, u := range members {
			grant, err := access.Get(ctx, u.ID, site.ID)
			require.NoError(t, err)
			require.NotNil(t, grant)
			assert.True(t, grant.CanView)
			assert.False(t, grant.CanEdit)
		}
	})

	t.Run("missing organization leaves no website", func(t *testing.T) {
		domain := uniqueName("orphan") + ".example.com"
		site := &models.Website{OrganizationID: uuid.New(), Name: "Orphan", Domain: domain}

		_, err := sites.CreateWithMemberGrants(ctx, site)
		assert.ErrorIs(t, err, ErrMissingReference)

		got, err := sites.GetByDomain(ctx, domain)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate domain names the constraint", func(t *testing.T) {
		org, _ := seedOrganization(t, pool, 1)
		domain := uniqueName("dup") + ".example.com"
		require.NoError(t, sites.Create(ctx, &models.Website{OrganizationID: org.ID, Name: "First", Domain: domain}))

		second := &models.Website{OrganizationID: org.ID, Name: "Second", Domain: domain}
		_, err := sites.CreateWithMemberGrants(ctx, second)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Equal(t, "websites_domain_key", ConstraintName(err))

		got, err := sites.GetByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestAccessRepo_GrantAndRevoke(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	access := NewAccessRepository(pool)

	org, members := seedOrganization(t, pool, 1)
	site := &models.Website{OrganizationID: org.ID, Name: "Blog", Domain: uniqueName("blog") + ".example.com"}
	require.NoError(t, NewWebsiteRepository(pool).Create(ctx, site))

	user := members[0]
	require.NoError(t, access.Grant(ctx, &models.WebsiteAccess{UserID: user.ID, WebsiteID: site.ID, CanView: true, CanEdit: true}))

	grant, err := access.Get(ctx, user.ID, site.ID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.True(t, grant.CanEdit)

	err = access.Grant(ctx, &models.WebsiteAccess{UserID: uuid.New(), WebsiteID: site.ID, CanView: true})
	assert.ErrorIs(t, err, ErrMissingReference)

	removed, err := access.Revoke(ctx, user.ID, site.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = access.Revoke(ctx, user.ID, site.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
