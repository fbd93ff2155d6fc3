package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// OrganizationService defines organization administration.
type OrganizationService interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error)
	List(ctx context.Context) ([]*models.OrganizationSummary, error)
}

// CreateOrganizationRequest is the request for creating an organization.
type CreateOrganizationRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=200"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Domain       *string `json:"domain,omitempty" validate:"omitempty,fqdn"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone,omitempty" validate:"omitempty,max=50"`
}

type organizationService struct {
	orgRepo repository.OrganizationRepository
	logger  *slog.Logger
}

// NewOrganizationService creates a new organization service.
func NewOrganizationService(orgRepo repository.OrganizationRepository, logger *slog.Logger) OrganizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &organizationService{orgRepo: orgRepo, logger: logger}
}

// Create creates an organization with a slug derived from its name.
func (s *organizationService) Create(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error) {
	name := strings.TrimSpace(req.Name)
	slug := models.Slugify(name)
	if slug == "" {
		return nil, apierrors.NewValidationError("name", "name must contain letters or digits")
	}

	existing, err := s.orgRepo.GetByName(ctx, name)
	if err != nil {
		return nil, apierrors.NewStorageError("get organization by name", err)
	}
	if existing != nil {
		return nil, apierrors.NewConflictError("Organization with this name already exists")
	}

	org := &models.Organization{
		Name:         name,
		Slug:         slug,
		Description:  req.Description,
		Domain:       req.Domain,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierrors.NewConflictError("Organization with this name already exists")
		}
		return nil, apierrors.NewStorageError("create organization", err)
	}

	s.logger.Info("organization created",
		slog.String("organization_id", org.ID.String()),
		slog.String("slug", org.Slug),
	)
	return org, nil
}

// List returns all organizations with member and website counts.
func (s *organizationService) List(ctx context.Context) ([]*models.OrganizationSummary, error) {
	orgs, err := s.orgRepo.ListWithCounts(ctx)
	if err != nil {
		return nil, apierrors.NewStorageError("list organizations", err)
	}
	if orgs == nil {
		orgs = []*models.OrganizationSummary{}
	}
	return orgs, nil
}

var _ OrganizationService = (*organizationService)(nil)
