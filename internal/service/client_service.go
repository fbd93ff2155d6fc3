package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/ulid"
	"github.com/oakleydye/oakley-metrics/internal/repository"
)

// ClientService defines client user administration.
type ClientService interface {
	// Invite creates a user ahead of their first login. The external id is a
	// placeholder until the resolver links it by email.
	Invite(ctx context.Context, req InviteClientRequest) (*models.User, error)
	List(ctx context.Context) ([]*models.ClientListItem, error)
}

// InviteClientRequest is the request for inviting a client user.
type InviteClientRequest struct {
	Email          string      `json:"email" validate:"required,email"`
	Name           string      `json:"name" validate:"required,min=1,max=200"`
	Role           models.Role `json:"role" validate:"required,oneof=CLIENT VIEWER"`
	OrganizationID *uuid.UUID  `json:"organization_id,omitempty"`
}

type clientService struct {
	userRepo repository.UserRepository
	orgRepo  repository.OrganizationRepository
	logger   *slog.Logger
}

// NewClientService creates a new client service.
func NewClientService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	logger *slog.Logger,
) ClientService {
	if logger == nil {
		logger = slog.Default()
	}
	return &clientService{userRepo: userRepo, orgRepo: orgRepo, logger: logger}
}

func (s *clientService) Invite(ctx context.Context, req InviteClientRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apierrors.NewStorageError("get user by email", err)
	}
	if existing != nil {
		return nil, apierrors.NewConflictError("User with this email already exists")
	}

	if req.OrganizationID != nil {
		org, err := s.orgRepo.GetByID(ctx, *req.OrganizationID)
		if err != nil {
			return nil, apierrors.NewStorageError("get organization", err)
		}
		if org == nil {
			return nil, apierrors.ErrBadRequest.WithMessage("Organization not found")
		}
	}

	name := strings.TrimSpace(req.Name)
	user := &models.User{
		ExternalID:     ulid.NewPlaceholderExternalID(),
		Email:          email,
		Name:           &name,
		Role:           req.Role,
		OrganizationID: req.OrganizationID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierrors.NewConflictError("User with this email already exists")
		}
		return nil, apierrors.NewStorageError("create user", err)
	}

	s.logger.Info("client invited",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

func (s *clientService) List(ctx context.Context) ([]*models.ClientListItem, error) {
	clients, err := s.userRepo.ListClients(ctx)
	if err != nil {
		return nil, apierrors.NewStorageError("list clients", err)
	}
	if clients == nil {
		clients = []*models.ClientListItem{}
	}
	return clients, nil
}

var _ ClientService = (*clientService)(nil)
