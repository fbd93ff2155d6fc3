package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// maxResolveAttempts bounds retries after a unique-constraint race with a
// concurrent first login for the same person.
const maxResolveAttempts = 3

// IdentityService maps identity provider assertions to local users.
type IdentityService interface {
	// Resolve finds the user for claims by external id, then by email,
	// creating one if neither matches.
	Resolve(ctx context.Context, claims IdentityClaims) (*models.User, error)
}

type identityService struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewIdentityService creates a new identity resolver.
func NewIdentityService(userRepo repository.UserRepository, logger *slog.Logger) IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &identityService{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *identityService) Resolve(ctx context.Context, claims IdentityClaims) (*models.User, error) {
	claims.Email = models.NormalizeEmail(claims.Email)
	if claims.ExternalID == "" {
		return nil, apierrors.NewValidationError("sub", "identity has no subject")
	}
	if claims.Email == "" {
		return nil, apierrors.NewValidationError("email", "identity has no email address")
	}

	var lastErr error
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		user, path, err := s.resolveOnce(ctx, claims)
		if err == nil {
			identityResolutionsTotal.WithLabelValues(path).Inc()
			s.recordLogin(ctx, user)
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			identityResolutionsTotal.WithLabelValues("failed").Inc()
			return nil, apierrors.NewStorageError("resolve user", err)
		}
		lastErr = err
		s.logger.Debug("identity resolution raced, retrying",
			slog.String("external_id", claims.ExternalID),
			slog.Int("attempt", attempt),
		)
	}

	identityResolutionsTotal.WithLabelValues("failed").Inc()
	return nil, apierrors.NewStorageError("resolve user", lastErr)
}

// resolveOnce runs one pass of the lookup precedence. It returns
// repository.ErrDuplicate when a concurrent writer won a unique constraint.
func (s *identityService) resolveOnce(ctx context.Context, claims IdentityClaims) (*models.User, string, error) {
	user, err := s.userRepo.GetByExternalID(ctx, claims.ExternalID)
	if err != nil {
		return nil, "", err
	}
	if user != nil {
		if applyClaims(user, claims) {
			if err := s.userRepo.Update(ctx, user); err != nil {
				return nil, "", err
			}
		}
		return user, "external_id", nil
	}

	user, err = s.userRepo.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, "", err
	}
	if user != nil {
		previous := user.ExternalID
		user.ExternalID = claims.ExternalID
		applyClaims(user, claims)
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, "", err
		}
		s.logger.Info("linked identity to existing user",
			slog.String("user_id", user.ID.String()),
			slog.String("previous_external_id", previous),
			slog.String("external_id", claims.ExternalID),
		)
		return user, "email", nil
	}

	user = &models.User{
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		Role:       models.RoleClient,
	}
	applyClaims(user, claims)
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}
	s.logger.Info("created user on first login",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return user, "created", nil
}

func (s *identityService) recordLogin(ctx context.Context, user *models.User) {
	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	user.LastLoginAt = &now
}

// applyClaims copies the provider-owned fields onto user and reports
// whether anything changed. A missing role claim leaves the role alone.
func applyClaims(user *models.User, claims IdentityClaims) bool {
	changed := false
	if user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		name := claims.Name
		user.Name = &name
		changed = true
	}
	if claims.Role != nil && user.Role != *claims.Role {
		user.Role = *claims.Role
		changed = true
	}
	return changed
}

var _ IdentityService = (*identityService)(nil)
