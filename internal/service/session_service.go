package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/oakleydye/oakley-metrics/internal/config"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// tokenLength is the size of generated opaque tokens in bytes.
const tokenLength = 32

// IssuedSession carries the opaque tokens handed to the browser.
// RefreshToken is empty when the provider issued no refresh credential.
type IssuedSession struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Session          *models.Session
}

// SessionService manages server-side sessions.
type SessionService interface {
	Issue(ctx context.Context, user *models.User, token *oauth2.Token) (*IssuedSession, error)
	// Validate returns the live session for an access token, or nil when the
	// token is empty, unknown or expired.
	Validate(ctx context.Context, accessToken string) (*models.Session, error)
	// Refresh trades a refresh token for a new session, reloading the user.
	Refresh(ctx context.Context, refreshToken string) (*IssuedSession, *models.User, error)
	// Invalidate deletes the records behind either token. Empty tokens are skipped.
	Invalidate(ctx context.Context, accessToken, refreshToken string) error
}

type sessionService struct {
	store    repository.SessionStore
	userRepo repository.UserRepository
	provider IdentityProvider
	cfg      config.SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(
	store repository.SessionStore,
	userRepo repository.UserRepository,
	provider IdentityProvider,
	cfg config.SessionConfig,
	logger *slog.Logger,
) SessionService {
	if cfg.AccessFallback <= 0 {
		cfg.AccessFallback = time.Hour
	}
	if cfg.RefreshLifetime <= 0 {
		cfg.RefreshLifetime = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		store:    store,
		userRepo: userRepo,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// generateToken returns an opaque token and the hash it is stored under.
func generateToken() (string, string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	return token, hashToken(token), nil
}

// hashToken returns the SHA-256 hex digest used as the storage key.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// accessLifetime uses the provider's expiry when it gave one.
func (s *sessionService) accessLifetime(token *oauth2.Token, now time.Time) time.Duration {
	if token != nil && !token.Expiry.IsZero() {
		if d := token.Expiry.Sub(now); d > 0 {
			return d
		}
	}
	return s.cfg.AccessFallback
}

func (s *sessionService) Issue(ctx context.Context, user *models.User, token *oauth2.Token) (*IssuedSession, error) {
	now := s.now()

	accessToken, accessHash, err := generateToken()
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		ID:        accessHash,
		Identity:  user.Identity(),
		ExpiresAt: now.Add(s.accessLifetime(token, now)),
		CreatedAt: now,
	}
	if token != nil {
		sess.ProviderAccessToken = token.AccessToken
		sess.ProviderRefreshToken = token.RefreshToken
	}
	if err := s.store.SaveSession(ctx, accessHash, sess); err != nil {
		return nil, apierrors.NewStorageError("save session", err)
	}

	issued := &IssuedSession{
		AccessToken:     accessToken,
		AccessExpiresAt: sess.ExpiresAt,
		Session:         sess,
	}

	if token == nil || token.RefreshToken == "" {
		return issued, nil
	}

	refreshToken, refreshHash, err := generateToken()
	if err != nil {
		s.discardSession(ctx, accessHash)
		return nil, err
	}
	grant := &models.RefreshGrant{
		ID:                   refreshHash,
		UserID:               user.ID,
		SessionID:            accessHash,
		ProviderRefreshToken: token.RefreshToken,
		ExpiresAt:            now.Add(s.cfg.RefreshLifetime),
		CreatedAt:            now,
	}
	if err := s.store.SaveRefresh(ctx, refreshHash, grant); err != nil {
		s.discardSession(ctx, accessHash)
		return nil, apierrors.NewStorageError("save refresh grant", err)
	}

	issued.RefreshToken = refreshToken
	issued.RefreshExpiresAt = grant.ExpiresAt
	return issued, nil
}

func (s *sessionService) Validate(ctx context.Context, accessToken string) (*models.Session, error) {
	if accessToken == "" {
		return nil, nil
	}
	sess, err := s.store.GetSession(ctx, hashToken(accessToken))
	if err != nil {
		return nil, apierrors.NewStorageError("get session", err)
	}
	if sess.State(s.now()) != models.SessionAuthenticated {
		return nil, nil
	}
	return sess, nil
}

func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*IssuedSession, *models.User, error) {
	if refreshToken == "" {
		sessionRefreshesTotal.WithLabelValues("missing").Inc()
		return nil, nil, apierrors.ErrUnauthorized
	}

	// Taking the grant makes it single use: of two concurrent refreshes with
	// the same token only one finds it.
	refreshHash := hashToken(refreshToken)
	grant, err := s.store.TakeRefresh(ctx, refreshHash)
	if err != nil {
		return nil, nil, apierrors.NewStorageError("take refresh grant", err)
	}
	if grant == nil || !s.now().Before(grant.ExpiresAt) {
		sessionRefreshesTotal.WithLabelValues("unknown").Inc()
		return nil, nil, apierrors.ErrUnauthorized
	}

	token, err := s.provider.Refresh(ctx, grant.ProviderRefreshToken)
	if err != nil {
		sessionRefreshesTotal.WithLabelValues("provider_error").Inc()
		s.restoreRefresh(ctx, refreshHash, grant)
		return nil, nil, &apierrors.ProviderError{Stage: apierrors.StageRefresh, Err: err}
	}
	if token.RefreshToken == "" {
		token.RefreshToken = grant.ProviderRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, grant.UserID)
	if err != nil {
		s.restoreRefresh(ctx, refreshHash, grant)
		return nil, nil, apierrors.NewStorageError("get user", err)
	}
	if user == nil {
		sessionRefreshesTotal.WithLabelValues("unknown").Inc()
		s.discardSession(ctx, grant.SessionID)
		return nil, nil, apierrors.ErrUnauthorized
	}

	issued, err := s.Issue(ctx, user, token)
	if err != nil {
		s.restoreRefresh(ctx, refreshHash, grant)
		return nil, nil, err
	}

	s.discardSession(ctx, grant.SessionID)

	sessionRefreshesTotal.WithLabelValues("success").Inc()
	return issued, user, nil
}

// discardSession deletes a session record that must not outlive the
// current operation. A failed delete leaves the record to its TTL.
func (s *sessionService) discardSession(ctx context.Context, hash string) {
	if err := s.store.DeleteSession(ctx, hash); err != nil {
		s.logger.Warn("failed to delete session record", slog.String("error", err.Error()))
	}
}

// restoreRefresh puts back a grant taken by a refresh that failed before a
// replacement was issued, so a transient fault does not force a new login.
func (s *sessionService) restoreRefresh(ctx context.Context, hash string, grant *models.RefreshGrant) {
	if err := s.store.SaveRefresh(ctx, hash, grant); err != nil {
		s.logger.Warn("failed to restore refresh grant", slog.String("error", err.Error()))
	}
}

func (s *sessionService) Invalidate(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.store.DeleteSession(ctx, hashToken(accessToken)); err != nil {
			return apierrors.NewStorageError("delete session", err)
		}
	}
	if refreshToken != "" {
		if err := s.store.DeleteRefresh(ctx, hashToken(refreshToken)); err != nil {
			return apierrors.NewStorageError("delete refresh grant", err)
		}
	}
	return nil
}

var _ SessionService = (*sessionService)(nil)
