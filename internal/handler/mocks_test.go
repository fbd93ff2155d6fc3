package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/middleware"
	"github.com/oakleydye/oakley-metrics/internal/models"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// passthrough stands in for session authentication; tests put the identity
// on the request context directly.
func passthrough(next http.Handler) http.Handler { return next }

func newTestJar(t *testing.T) *CookieJar {
	t.Helper()
	jar, err := NewCookieJar(testSecret, true, 5*time.Minute)
	require.NoError(t, err)
	return jar
}

// mockOAuthService is a mock implementation of OAuthService for testing.
type mockOAuthService struct {
	callbackFunc func(ctx context.Context, code string) (*models.User, *service.IssuedSession, error)
}

func (m *mockOAuthService) AuthURL(state string) string {
	return "https://tenant.example.com/authorize?state=" + state
}

func (m *mockOAuthService) HandleCallback(ctx context.Context, code string) (*models.User, *service.IssuedSession, error) {
	if m.callbackFunc != nil {
		return m.callbackFunc(ctx, code)
	}
	return nil, nil, nil
}

func (m *mockOAuthService) LogoutURL() string {
	return "https://tenant.example.com/v2/logout?client_id=abc"
}

// mockSessionService is a mock implementation of SessionService for testing.
type mockSessionService struct {
	refreshFunc    func(ctx context.Context, token string) (*service.IssuedSession, *models.User, error)
	invalidateFunc func(ctx context.Context, access, refresh string) error
	invalidated    [][2]string
}

func (m *mockSessionService) Issue(context.Context, *models.User, *oauth2.Token) (*service.IssuedSession, error) {
	return nil, nil
}

func (m *mockSessionService) Validate(context.Context, string) (*models.Session, error) {
	return nil, nil
}

func (m *mockSessionService) Refresh(ctx context.Context, token string) (*service.IssuedSession, *models.User, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, token)
	}
	return nil, nil, nil
}

func (m *mockSessionService) Invalidate(ctx context.Context, access, refresh string) error {
	m.invalidated = append(m.invalidated, [2]string{access, refresh})
	if m.invalidateFunc != nil {
		return m.invalidateFunc(ctx, access, refresh)
	}
	return nil
}

type mockAccountService struct {
	profileFunc func(ctx context.Context, identity *models.Identity) (*service.Profile, error)
}

func (m *mockAccountService) Profile(ctx context.Context, identity *models.Identity) (*service.Profile, error) {
	if m.profileFunc != nil {
		return m.profileFunc(ctx, identity)
	}
	return nil, nil
}

type mockOrgService struct {
	createFunc func(ctx context.Context, req service.CreateOrganizationRequest) (*models.Organization, error)
	listFunc   func(ctx context.Context) ([]*models.OrganizationSummary, error)
}

func (m *mockOrgService) Create(ctx context.Context, req service.CreateOrganizationRequest) (*models.Organization, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockOrgService) List(ctx context.Context) ([]*models.OrganizationSummary, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*models.OrganizationSummary{}, nil
}

type mockWebsiteService struct {
	createFunc func(ctx context.Context, req service.CreateWebsiteRequest) (*models.Website, error)
}

func (m *mockWebsiteService) Create(ctx context.Context, req service.CreateWebsiteRequest) (*models.Website, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockWebsiteService) List(context.Context) ([]*models.WebsiteSummary, error) {
	return []*models.WebsiteSummary{}, nil
}

func (m *mockWebsiteService) ListForIdentity(context.Context, *models.Identity) ([]*models.Website, error) {
	return []*models.Website{}, nil
}

type mockAccessService struct {
	grantFunc  func(ctx context.Context, websiteID uuid.UUID, req service.GrantAccessRequest) (*models.WebsiteAccess, error)
	revokeFunc func(ctx context.Context, websiteID, userID uuid.UUID) error
}

func (m *mockAccessService) Grant(ctx context.Context, websiteID uuid.UUID, req service.GrantAccessRequest) (*models.WebsiteAccess, error) {
	if m.grantFunc != nil {
		return m.grantFunc(ctx, websiteID, req)
	}
	return nil, nil
}

func (m *mockAccessService) Revoke(ctx context.Context, websiteID, userID uuid.UUID) error {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, websiteID, userID)
	}
	return nil
}

type mockClientService struct {
	inviteFunc func(ctx context.Context, req service.InviteClientRequest) (*models.User, error)
}

func (m *mockClientService) Invite(ctx context.Context, req service.InviteClientRequest) (*models.User, error) {
	if m.inviteFunc != nil {
		return m.inviteFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockClientService) List(context.Context) ([]*models.ClientListItem, error) {
	return []*models.ClientListItem{}, nil
}

type mockMetricsService struct {
	got models.MetricsQuery
	err error
}

func (m *mockMetricsService) SEO(_ context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error) {
	m.got = q
	return []*models.SEOMetric{}, m.err
}

func (m *mockMetricsService) PPC(_ context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error) {
	m.got = q
	return []*models.PPCMetric{}, m.err
}

// grantTable serves grants keyed by website.
type grantTable map[uuid.UUID]*models.WebsiteAccess

func (g grantTable) Get(_ context.Context, _, websiteID uuid.UUID) (*models.WebsiteAccess, error) {
	return g[websiteID], nil
}

func newTestPolicy(t *testing.T, grants grantTable) *authz.Policy {
	t.Helper()
	p, err := authz.NewPolicy(grants)
	require.NoError(t, err)
	return p
}

func asRole(r *http.Request, role models.Role) *http.Request {
	identity := &models.Identity{UserID: uuid.New(), Email: "u@x.com", Role: role}
	return r.WithContext(middleware.WithIdentity(r.Context(), identity))
}
