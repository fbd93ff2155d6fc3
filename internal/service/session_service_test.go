package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/oakleydye/oakley-metrics/internal/config"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
)

type sessionFixture struct {
	store    *fakeSessionStore
	users    *fakeUserRepo
	provider *fakeProvider
	svc      *sessionService
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:    newFakeSessionStore(),
		users:    newFakeUserRepo(),
		provider: &fakeProvider{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewSessionService(f.store, f.users, f.provider, config.SessionConfig{
		AccessFallback:  time.Hour,
		RefreshLifetime: 30 * 24 * time.Hour,
	}, discardLogger()).(*sessionService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestIssue_UsesProviderExpiry(t *testing.T) {
	f := newSessionFixture(t)
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com", Role: models.RoleAdmin})

	issued, err := f.svc.Issue(context.Background(), user, &oauth2.Token{
		AccessToken: "provider-at",
		Expiry:      f.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, issued.AccessToken)
	assert.Equal(t, f.now.Add(2*time.Hour), issued.AccessExpiresAt)
	assert.Empty(t, issued.RefreshToken)
	assert.Empty(t, f.store.refresh)

	stored := f.store.sessions[hashToken(issued.AccessToken)]
	require.NotNil(t, stored)
	assert.Equal(t, models.RoleAdmin, stored.Identity.Role)
	assert.Equal(t, user.ID, stored.Identity.UserID)
	assert.NotContains(t, f.store.sessions, issued.AccessToken)
}

func TestIssue_FallbackLifetimeAndRefreshGrant(t *testing.T) {
	f := newSessionFixture(t)
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	issued, err := f.svc.Issue(context.Background(), user, &oauth2.Token{
		AccessToken:  "provider-at",
		RefreshToken: "provider-rt",
	})
	require.NoError(t, err)

	assert.Equal(t, f.now.Add(time.Hour), issued.AccessExpiresAt)
	require.NotEmpty(t, issued.RefreshToken)
	assert.Equal(t, f.now.Add(30*24*time.Hour), issued.RefreshExpiresAt)

	grant := f.store.refresh[hashToken(issued.RefreshToken)]
	require.NotNil(t, grant)
	assert.Equal(t, "provider-rt", grant.ProviderRefreshToken)
	assert.Equal(t, user.ID, grant.UserID)
	assert.Equal(t, hashToken(issued.AccessToken), grant.SessionID)
}

func TestIssue_StorageFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.store.err = errStorageDown
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	_, err := f.svc.Issue(context.Background(), user, &oauth2.Token{AccessToken: "x"})
	assert.True(t, apierrors.IsStorageError(err))
}

func TestIssue_RefreshGrantFailureLeavesNoSession(t *testing.T) {
	f := newSessionFixture(t)
	f.store.saveRefreshErr = errStorageDown
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	issued, err := f.svc.Issue(context.Background(), user, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"})
	assert.Nil(t, issued)
	assert.True(t, apierrors.IsStorageError(err))
	assert.Empty(t, f.store.sessions)
	assert.Empty(t, f.store.refresh)
}

func TestValidate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	issued, err := f.svc.Issue(ctx, user, &oauth2.Token{AccessToken: "x"})
	require.NoError(t, err)

	t.Run("live session", func(t *testing.T) {
		sess, err := f.svc.Validate(ctx, issued.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, user.ID, sess.Identity.UserID)
	})

	t.Run("empty token", func(t *testing.T) {
		sess, err := f.svc.Validate(ctx, "")
		assert.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("unknown token", func(t *testing.T) {
		sess, err := f.svc.Validate(ctx, "forged")
		assert.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("expired session", func(t *testing.T) {
		saved := f.now
		f.now = f.now.Add(time.Hour)
		defer func() { f.now = saved }()

		sess, err := f.svc.Validate(ctx, issued.AccessToken)
		assert.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("storage failure is not anonymous", func(t *testing.T) {
		f.store.err = errStorageDown
		defer func() { f.store.err = nil }()

		sess, err := f.svc.Validate(ctx, issued.AccessToken)
		assert.Nil(t, sess)
		assert.True(t, apierrors.IsStorageError(err))
	})
}

func TestRefresh_RotatesAndReloadsUser(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com", Role: models.RoleClient})

	issued, err := f.svc.Issue(ctx, user, &oauth2.Token{AccessToken: "at1", RefreshToken: "rt1"})
	require.NoError(t, err)

	// An admin promotes the user between logins.
	user.Role = models.RoleAdmin
	require.NoError(t, f.users.Update(ctx, user))

	f.provider.refreshed = &oauth2.Token{AccessToken: "at2", Expiry: f.now.Add(30 * time.Minute)}
	next, refreshedUser, err := f.svc.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, "rt1", f.provider.gotRefresh)
	assert.Equal(t, models.RoleAdmin, refreshedUser.Role)
	assert.Equal(t, models.RoleAdmin, next.Session.Identity.Role)
	assert.NotEqual(t, issued.AccessToken, next.AccessToken)
	assert.NotEqual(t, issued.RefreshToken, next.RefreshToken)
	assert.Equal(t, f.now.Add(30*time.Minute), next.AccessExpiresAt)

	// Old pair retired; provider refresh token carried forward.
	assert.NotContains(t, f.store.sessions, hashToken(issued.AccessToken))
	assert.NotContains(t, f.store.refresh, hashToken(issued.RefreshToken))
	assert.Equal(t, "rt1", f.store.refresh[hashToken(next.RefreshToken)].ProviderRefreshToken)
}

func TestRefresh_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, _, err := f.svc.Refresh(ctx, "")
		assert.Same(t, apierrors.ErrUnauthorized, err)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, _, err := f.svc.Refresh(ctx, "nope")
		assert.Same(t, apierrors.ErrUnauthorized, err)
	})

	t.Run("provider rejects", func(t *testing.T) {
		f := newSessionFixture(t)
		user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})
		issued, err := f.svc.Issue(ctx, user, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"})
		require.NoError(t, err)

		f.provider.refreshErr = errors.New("temporarily_unavailable")
		_, _, err = f.svc.Refresh(ctx, issued.RefreshToken)
		assert.Equal(t, apierrors.StageRefresh, apierrors.FailedStage(err))

		// The grant survives a provider failure so the user can retry.
		assert.Contains(t, f.store.refresh, hashToken(issued.RefreshToken))
	})

	t.Run("user gone", func(t *testing.T) {
		f := newSessionFixture(t)
		ghost := &models.User{ID: uuid.New(), ExternalID: "auth0|ghost", Email: "g@x.com"}
		issued, err := f.svc.Issue(ctx, ghost, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"})
		require.NoError(t, err)

		f.provider.refreshed = &oauth2.Token{AccessToken: "at2"}
		_, _, err = f.svc.Refresh(ctx, issued.RefreshToken)
		assert.Same(t, apierrors.ErrUnauthorized, err)
		assert.Empty(t, f.store.sessions)
		assert.Empty(t, f.store.refresh)
	})
}

func TestRefresh_TokenIsSingleUse(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	issued, err := f.svc.Issue(ctx, user, &oauth2.Token{AccessToken: "at1", RefreshToken: "rt1"})
	require.NoError(t, err)
	f.provider.refreshed = &oauth2.Token{AccessToken: "at2"}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.Refresh(ctx, issued.RefreshToken); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.Same(t, apierrors.ErrUnauthorized, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.store.sessions, 1)
	assert.Len(t, f.store.refresh, 1)
}

func TestInvalidate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := f.users.seed(&models.User{ExternalID: "auth0|1", Email: "a@x.com"})

	issued, err := f.svc.Issue(ctx, user, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Invalidate(ctx, issued.AccessToken, issued.RefreshToken))
	assert.Empty(t, f.store.sessions)
	assert.Empty(t, f.store.refresh)

	// Nothing to delete is fine.
	assert.NoError(t, f.svc.Invalidate(ctx, "", ""))
	assert.NoError(t, f.svc.Invalidate(ctx, "unknown", "unknown"))
}
