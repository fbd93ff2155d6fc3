package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// AccessService manages explicit website grants.
type AccessService interface {
	Grant(ctx context.Context, websiteID uuid.UUID, req GrantAccessRequest) (*models.WebsiteAccess, error)
	Revoke(ctx context.Context, websiteID, userID uuid.UUID) error
}

// GrantAccessRequest is the request for granting a user access to a website.
// CanView defaults to true; CanEdit implies CanView.
type GrantAccessRequest struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	CanView *bool     `json:"can_view,omitempty"`
	CanEdit bool      `json:"can_edit"`
}

type accessService struct {
	accessRepo  repository.AccessRepository
	websiteRepo repository.WebsiteRepository
	userRepo    repository.UserRepository
	logger      *slog.Logger
}

// NewAccessService creates a new access service.
func NewAccessService(
	accessRepo repository.AccessRepository,
	websiteRepo repository.WebsiteRepository,
	userRepo repository.UserRepository,
	logger *slog.Logger,
) AccessService {
	if logger == nil {
		logger = slog.Default()
	}
	return &accessService{
		accessRepo:  accessRepo,
		websiteRepo: websiteRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// Grant creates or replaces a user's grant on a website.
func (s *accessService) Grant(ctx context.Context, websiteID uuid.UUID, req GrantAccessRequest) (*models.WebsiteAccess, error) {
	site, err := s.websiteRepo.GetByID(ctx, websiteID)
	if err != nil {
		return nil, apierrors.NewStorageError("get website", err)
	}
	if site == nil {
		return nil, apierrors.NewNotFoundError("Website")
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, apierrors.NewStorageError("get user", err)
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}

	canView := req.CanView == nil || *req.CanView
	if req.CanEdit {
		canView = true
	}
	if !canView {
		return nil, apierrors.NewValidationError("can_view", "a grant must allow viewing; revoke it instead")
	}

	access := &models.WebsiteAccess{
		UserID:    user.ID,
		WebsiteID: site.ID,
		CanView:   canView,
		CanEdit:   req.CanEdit,
	}
	if err := s.accessRepo.Grant(ctx, access); err != nil {
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, apierrors.NewNotFoundError("Website")
		}
		return nil, apierrors.NewStorageError("grant website access", err)
	}

	s.logger.Info("website access granted",
		slog.String("website_id", site.ID.String()),
		slog.String("user_id", user.ID.String()),
		slog.Bool("can_edit", access.CanEdit),
	)
	return access, nil
}

// Revoke removes a user's grant on a website.
func (s *accessService) Revoke(ctx context.Context, websiteID, userID uuid.UUID) error {
	removed, err := s.accessRepo.Revoke(ctx, userID, websiteID)
	if err != nil {
		return apierrors.NewStorageError("revoke website access", err)
	}
	if !removed {
		return apierrors.NewNotFoundError("Access grant")
	}

	s.logger.Info("website access revoked",
		slog.String("website_id", websiteID.String()),
		slog.String("user_id", userID.String()),
	)
	return nil
}

var _ AccessService = (*accessService)(nil)
