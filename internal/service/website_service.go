package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// WebsiteService defines website administration and lookup.
type WebsiteService interface {
	Create(ctx context.Context, req CreateWebsiteRequest) (*models.Website, error)
	List(ctx context.Context) ([]*models.WebsiteSummary, error)
	// ListForIdentity returns every website for admins and the granted
	// websites for everyone else.
	ListForIdentity(ctx context.Context, identity *models.Identity) ([]*models.Website, error)
}

// CreateWebsiteRequest is the request for creating a website.
type CreateWebsiteRequest struct {
	Name              string    `json:"name" validate:"required,min=1,max=200"`
	URL               string    `json:"url" validate:"required,url"`
	OrganizationID    uuid.UUID `json:"organization_id" validate:"required"`
	Description       *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Industry          *string   `json:"industry,omitempty" validate:"omitempty,max=100"`
	Country           string    `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	GoogleAnalyticsID *string   `json:"google_analytics_id,omitempty"`
	GoogleAdsID       *string   `json:"google_ads_id,omitempty"`
	FacebookPixelID   *string   `json:"facebook_pixel_id,omitempty"`
	// GrantOrganizationMembers grants view access to the organization's
	// current members. Off unless requested.
	GrantOrganizationMembers bool `json:"grant_organization_members"`
}

type websiteService struct {
	websiteRepo repository.WebsiteRepository
	orgRepo     repository.OrganizationRepository
	logger      *slog.Logger
}

// NewWebsiteService creates a new website service.
func NewWebsiteService(
	websiteRepo repository.WebsiteRepository,
	orgRepo repository.OrganizationRepository,
	logger *slog.Logger,
) WebsiteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &websiteService{
		websiteRepo: websiteRepo,
		orgRepo:     orgRepo,
		logger:      logger,
	}
}

// Create creates a website. The domain is the host name of req.URL and
// must be unique.
func (s *websiteService) Create(ctx context.Context, req CreateWebsiteRequest) (*models.Website, error) {
	domain, err := models.DomainFromURL(req.URL)
	if err != nil {
		return nil, apierrors.NewValidationError("url", "Invalid URL format")
	}

	org, err := s.orgRepo.GetByID(ctx, req.OrganizationID)
	if err != nil {
		return nil, apierrors.NewStorageError("get organization", err)
	}
	if org == nil {
		return nil, apierrors.ErrBadRequest.WithMessage("Organization not found")
	}

	existing, err := s.websiteRepo.GetByDomain(ctx, domain)
	if err != nil {
		return nil, apierrors.NewStorageError("get website by domain", err)
	}
	if existing != nil {
		return nil, apierrors.NewConflictError("Website with this domain already exists")
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		country = "US"
	}
	rawURL := strings.TrimSpace(req.URL)

	site := &models.Website{
		OrganizationID:    org.ID,
		Name:              strings.TrimSpace(req.Name),
		Domain:            domain,
		URL:               &rawURL,
		Description:       req.Description,
		Industry:          req.Industry,
		Country:           country,
		IsActive:          true,
		GoogleAnalyticsID: req.GoogleAnalyticsID,
		GoogleAdsID:       req.GoogleAdsID,
		FacebookPixelID:   req.FacebookPixelID,
	}
	var granted int64
	if req.GrantOrganizationMembers {
		granted, err = s.websiteRepo.CreateWithMemberGrants(ctx, site)
	} else {
		err = s.websiteRepo.Create(ctx, site)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			s.logger.Info("website domain taken",
				slog.String("domain", domain),
				slog.String("constraint", repository.ConstraintName(err)),
			)
			return nil, apierrors.NewConflictError("Website with this domain already exists")
		case errors.Is(err, repository.ErrMissingReference):
			return nil, apierrors.ErrBadRequest.WithMessage("Organization not found")
		}
		return nil, apierrors.NewStorageError("create website", err)
	}

	if req.GrantOrganizationMembers {
		s.logger.Info("granted organization members",
			slog.String("website_id", site.ID.String()),
			slog.Int64("grants", granted),
		)
	}

	s.logger.Info("website created",
		slog.String("website_id", site.ID.String()),
		slog.String("domain", site.Domain),
	)
	return site, nil
}

// List returns all websites with organization names and grant counts.
func (s *websiteService) List(ctx context.Context) ([]*models.WebsiteSummary, error) {
	sites, err := s.websiteRepo.ListWithCounts(ctx)
	if err != nil {
		return nil, apierrors.NewStorageError("list websites", err)
	}
	if sites == nil {
		sites = []*models.WebsiteSummary{}
	}
	return sites, nil
}

func (s *websiteService) ListForIdentity(ctx context.Context, identity *models.Identity) ([]*models.Website, error) {
	if identity == nil {
		return nil, apierrors.ErrUnauthorized
	}

	var (
		sites []*models.Website
		err   error
	)
	if identity.Role == models.RoleAdmin {
		sites, err = s.websiteRepo.ListAll(ctx)
	} else {
		sites, err = s.websiteRepo.ListAccessible(ctx, identity.UserID)
	}
	if err != nil {
		return nil, apierrors.NewStorageError("list websites for user", err)
	}
	if sites == nil {
		sites = []*models.Website{}
	}
	return sites, nil
}

var _ WebsiteService = (*websiteService)(nil)
