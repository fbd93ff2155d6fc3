package service

import (
	"context"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// Profile is the signed-in user's view of themselves.
type Profile struct {
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization,omitempty"`
	Websites     []*models.Website    `json:"websites"`
}

// AccountService loads the profile behind a session.
type AccountService interface {
	Profile(ctx context.Context, identity *models.Identity) (*Profile, error)
}

type accountService struct {
	userRepo repository.UserRepository
	orgRepo  repository.OrganizationRepository
	websites WebsiteService
}

// NewAccountService creates a new account service.
func NewAccountService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	websites WebsiteService,
) AccountService {
	return &accountService{userRepo: userRepo, orgRepo: orgRepo, websites: websites}
}

// Profile reads the current user record rather than the session snapshot,
// so admin edits show up without a new login.
func (s *accountService) Profile(ctx context.Context, identity *models.Identity) (*Profile, error) {
	if identity == nil {
		return nil, apierrors.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, apierrors.NewStorageError("get user", err)
	}
	if user == nil {
		return nil, apierrors.ErrUnauthorized
	}

	profile := &Profile{User: user}
	if user.OrganizationID != nil {
		org, err := s.orgRepo.GetByID(ctx, *user.OrganizationID)
		if err != nil {
			return nil, apierrors.NewStorageError("get organization", err)
		}
		profile.Organization = org
	}

	// Authorization uses the stored role, not the session snapshot.
	current := user.Identity()
	profile.Websites, err = s.websites.ListForIdentity(ctx, &current)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

var _ AccountService = (*accountService)(nil)
