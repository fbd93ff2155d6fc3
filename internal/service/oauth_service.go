package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oakleydye/oakley-metrics/internal/config"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
)

// OAuthService runs the authorization code login flow.
type OAuthService interface {
	// AuthURL returns the provider authorize URL for state.
	AuthURL(state string) string

	// HandleCallback exchanges code, resolves the user and issues a session.
	// Errors carry the failed stage; see apierrors.FailedStage.
	HandleCallback(ctx context.Context, code string) (*models.User, *IssuedSession, error)

	// LogoutURL returns the provider logout URL that comes back to this app.
	LogoutURL() string
}

type oauthService struct {
	provider   IdentityProvider
	identities IdentityService
	sessions   SessionService
	rolePaths  []string
	baseURL    string
	logger     *slog.Logger
}

// NewOAuthService creates a new OAuth login service.
func NewOAuthService(
	cfg config.AuthConfig,
	provider IdentityProvider,
	identities IdentityService,
	sessions SessionService,
	logger *slog.Logger,
) OAuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &oauthService{
		provider:   provider,
		identities: identities,
		sessions:   sessions,
		rolePaths:  cfg.RoleClaims,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

func (s *oauthService) AuthURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

func (s *oauthService) HandleCallback(ctx context.Context, code string) (*models.User, *IssuedSession, error) {
	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, nil, s.fail(apierrors.StageTokenExchange, &apierrors.ProviderError{Stage: apierrors.StageTokenExchange, Err: err})
	}

	raw, err := s.provider.UserInfo(ctx, token)
	if err != nil {
		return nil, nil, s.fail(apierrors.StageUserInfo, &apierrors.ProviderError{Stage: apierrors.StageUserInfo, Err: err})
	}

	claims, err := ClaimsFromUserInfo(raw, s.rolePaths)
	if err != nil {
		return nil, nil, s.fail(apierrors.StageUserInfo, &apierrors.ProviderError{Stage: apierrors.StageUserInfo, Err: err})
	}

	user, err := s.identities.Resolve(ctx, *claims)
	if err != nil {
		return nil, nil, s.fail(apierrors.StageUserResolution, &apierrors.LoginError{Stage: apierrors.StageUserResolution, Err: err})
	}

	issued, err := s.sessions.Issue(ctx, user, token)
	if err != nil {
		return nil, nil, s.fail(apierrors.StageSession, &apierrors.LoginError{Stage: apierrors.StageSession, Err: err})
	}

	loginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return user, issued, nil
}

func (s *oauthService) fail(stage string, err error) error {
	loginsTotal.WithLabelValues(stage).Inc()
	s.logger.Error("login callback failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("oauth callback: %w", err)
}

func (s *oauthService) LogoutURL() string {
	return s.provider.LogoutURL(s.baseURL)
}

var _ OAuthService = (*oauthService)(nil)
