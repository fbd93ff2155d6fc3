package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/oakleydye/oakley-metrics/internal/models"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

var errStorageDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo enforces the same unique constraints as the users table.
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	err       error
	creates   int
	updates   int
	lastLogin map[uuid.UUID]time.Time
	// beforeCreate runs without the lock held, between lookup and insert.
	beforeCreate func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     make(map[uuid.UUID]*models.User),
		lastLogin: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeUserRepo) seed(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleClient
	}
	u.CreatedAt = time.Now()
	cp := *u
	f.users[u.ID] = &cp
	return u
}

func (f *fakeUserRepo) conflicts(u *models.User) bool {
	for id, other := range f.users {
		if id == u.ID {
			continue
		}
		if other.ExternalID == u.ExternalID || other.Email == u.Email {
			return true
		}
	}
	return false
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = models.NormalizeEmail(u.Email)
	if f.conflicts(u) {
		return repository.ErrDuplicate
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.users[u.ID] = &cp
	f.creates++
	return nil
}

func (f *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ExternalID == externalID })
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) Update(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if f.conflicts(u) {
		return repository.ErrDuplicate
	}
	cp := *u
	f.users[u.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin[id] = at
	return nil
}

func (f *fakeUserRepo) ListClients(_ context.Context) ([]*models.ClientListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ClientListItem
	for _, u := range f.users {
		if u.Role == models.RoleClient || u.Role == models.RoleViewer {
			out = append(out, &models.ClientListItem{User: *u})
		}
	}
	return out, nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*models.Organization
	err  error
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: make(map[uuid.UUID]*models.Organization)}
}

func (f *fakeOrgRepo) seed(name string) *models.Organization {
	org := &models.Organization{ID: uuid.New(), Name: name, Slug: models.Slugify(name)}
	f.orgs[org.ID] = org
	return org
}

func (f *fakeOrgRepo) Create(_ context.Context, org *models.Organization) error {
	if f.err != nil {
		return f.err
	}
	for _, o := range f.orgs {
		if o.Name == org.Name || o.Slug == org.Slug {
			return repository.ErrDuplicate
		}
	}
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orgs[id], nil
}

func (f *fakeOrgRepo) GetByName(_ context.Context, name string) (*models.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range f.orgs {
		if o.Name == name {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeOrgRepo) ListWithCounts(_ context.Context) ([]*models.OrganizationSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.OrganizationSummary
	for _, o := range f.orgs {
		out = append(out, &models.OrganizationSummary{Organization: *o})
	}
	return out, nil
}

type fakeWebsiteRepo struct {
	sites  map[uuid.UUID]*models.Website
	access *fakeAccessRepo
	err    error
}

func newFakeWebsiteRepo(access *fakeAccessRepo) *fakeWebsiteRepo {
	return &fakeWebsiteRepo{sites: make(map[uuid.UUID]*models.Website), access: access}
}

func (f *fakeWebsiteRepo) seed(orgID uuid.UUID, domain string) *models.Website {
	site := &models.Website{ID: uuid.New(), OrganizationID: orgID, Name: domain, Domain: domain, Country: "US", IsActive: true}
	f.sites[site.ID] = site
	return site
}

func (f *fakeWebsiteRepo) Create(_ context.Context, site *models.Website) error {
	if f.err != nil {
		return f.err
	}
	for _, s := range f.sites {
		if s.Domain == site.Domain {
			return repository.ErrDuplicate
		}
	}
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	f.sites[site.ID] = site
	return nil
}

func (f *fakeWebsiteRepo) CreateWithMemberGrants(ctx context.Context, site *models.Website) (int64, error) {
	if err := f.Create(ctx, site); err != nil {
		return 0, err
	}
	n, err := f.access.grantMembers(site.OrganizationID, site.ID)
	if err != nil {
		// Rolled back with the grants.
		delete(f.sites, site.ID)
		return 0, err
	}
	return n, nil
}

func (f *fakeWebsiteRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Website, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sites[id], nil
}

func (f *fakeWebsiteRepo) GetByDomain(_ context.Context, domain string) (*models.Website, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.sites {
		if s.Domain == domain {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeWebsiteRepo) ListWithCounts(_ context.Context) ([]*models.WebsiteSummary, error) {
	var out []*models.WebsiteSummary
	for _, s := range f.sites {
		out = append(out, &models.WebsiteSummary{Website: *s})
	}
	return out, nil
}

func (f *fakeWebsiteRepo) ListAll(_ context.Context) ([]*models.Website, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Website
	for _, s := range f.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeWebsiteRepo) ListAccessible(_ context.Context, userID uuid.UUID) ([]*models.Website, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Website
	for key, a := range f.access.grants {
		if key.user == userID && a.CanView {
			out = append(out, f.sites[key.site])
		}
	}
	return out, nil
}

type grantKey struct {
	user, site uuid.UUID
}

type fakeAccessRepo struct {
	grants map[grantKey]*models.WebsiteAccess
	users  *fakeUserRepo
	err    error
}

func newFakeAccessRepo(users *fakeUserRepo) *fakeAccessRepo {
	return &fakeAccessRepo{grants: make(map[grantKey]*models.WebsiteAccess), users: users}
}

func (f *fakeAccessRepo) Get(_ context.Context, userID, websiteID uuid.UUID) (*models.WebsiteAccess, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grants[grantKey{userID, websiteID}], nil
}

func (f *fakeAccessRepo) Grant(_ context.Context, a *models.WebsiteAccess) error {
	if f.err != nil {
		return f.err
	}
	a.CreatedAt = time.Now()
	f.grants[grantKey{a.UserID, a.WebsiteID}] = a
	return nil
}

func (f *fakeAccessRepo) Revoke(_ context.Context, userID, websiteID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := grantKey{userID, websiteID}
	_, ok := f.grants[key]
	delete(f.grants, key)
	return ok, nil
}

// grantMembers mirrors the member grant written with a new website.
func (f *fakeAccessRepo) grantMembers(orgID, websiteID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	for _, u := range f.users.users {
		if u.OrganizationID == nil || *u.OrganizationID != orgID {
			continue
		}
		key := grantKey{u.ID, websiteID}
		if _, ok := f.grants[key]; ok {
			continue
		}
		f.grants[key] = &models.WebsiteAccess{UserID: u.ID, WebsiteID: websiteID, CanView: true}
		n++
	}
	return n, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	refresh  map[string]*models.RefreshGrant
	err      error
	// saveRefreshErr fails SaveRefresh only.
	saveRefreshErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*models.Session),
		refresh:  make(map[string]*models.RefreshGrant),
	}
}

func (f *fakeSessionStore) SaveSession(_ context.Context, hash string, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sessions[hash] = s
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, hash string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[hash], nil
}

func (f *fakeSessionStore) DeleteSession(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.sessions, hash)
	return nil
}

func (f *fakeSessionStore) SaveRefresh(_ context.Context, hash string, g *models.RefreshGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.saveRefreshErr != nil {
		return f.saveRefreshErr
	}
	f.refresh[hash] = g
	return nil
}

func (f *fakeSessionStore) TakeRefresh(_ context.Context, hash string) (*models.RefreshGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	g := f.refresh[hash]
	delete(f.refresh, hash)
	return g, nil
}

func (f *fakeSessionStore) DeleteRefresh(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.refresh, hash)
	return nil
}

type fakeProvider struct {
	token       *oauth2.Token
	exchangeErr error
	claims      map[string]any
	userInfoErr error
	refreshed   *oauth2.Token
	refreshErr  error
	gotCode     string
	gotRefresh  string
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://tenant.example.com/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.gotCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeProvider) UserInfo(_ context.Context, _ *oauth2.Token) (map[string]any, error) {
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return f.claims, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.gotRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeProvider) LogoutURL(returnTo string) string {
	return "https://tenant.example.com/v2/logout?returnTo=" + returnTo
}

type fakeMetricsRepo struct {
	got models.MetricsQuery
	seo []*models.SEOMetric
	ppc []*models.PPCMetric
	err error
}

func (f *fakeMetricsRepo) ListSEO(_ context.Context, q models.MetricsQuery) ([]*models.SEOMetric, error) {
	f.got = q
	return f.seo, f.err
}

func (f *fakeMetricsRepo) ListPPC(_ context.Context, q models.MetricsQuery) ([]*models.PPCMetric, error) {
	f.got = q
	return f.ppc, f.err
}
