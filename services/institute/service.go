// Package institute implements tenant registration and profile access.
package institute

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/auth"
	"go.uber.org/zap"
)

// RegisterInput carries the validated fields of a registration request
type RegisterInput struct {
	Name          string
	Type          string
	ContactEmail  string
	ContactPerson string
	Phone         string
	Address       string
	Password      string
}

// Service implements institute registration and profile reads
type Service struct {
	institutes repositories.InstituteRepository
	kyc        repositories.KYCRepository
	hasher     *auth.Hasher
	logger     *zap.Logger
}

// NewService creates a new institute service
func NewService(
	institutes repositories.InstituteRepository,
	kyc repositories.KYCRepository,
	hasher *auth.Hasher,
	logger *zap.Logger,
) *Service {
	return &Service{
		institutes: institutes,
		kyc:        kyc,
		hasher:     hasher,
		logger:     logger,
	}
}

// Register creates a new institute. The contact email is the unique login
// identity; a duplicate registration fails with a conflict.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Institute, error) {
	if !models.ValidInstituteType(input.Type) {
		return nil, services.ErrInvalidInstituteType.WithDetail("institute_type", input.Type)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	institute := models.NewInstitute(
		input.Name,
		models.InstituteType(input.Type),
		input.ContactEmail,
		input.ContactPerson,
		input.Phone,
		input.Address,
		hash,
	)

	if err := s.institutes.Create(ctx, institute); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrInstituteExists
		}
		return nil, services.WrapInternal("failed to create institute", err)
	}

	s.logger.Info("institute registered",
		zap.String("institute_id", institute.ID.String()),
		zap.String("type", input.Type))
	return institute, nil
}

// Profile returns the public projection of an institute, including
// document-presence flags derived from its KYC request
func (s *Service) Profile(ctx context.Context, institute *models.Institute) (*models.InstituteProfile, error) {
	request, err := s.kyc.GetByInstituteID(ctx, institute.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return institute.Profile(false, false), nil
		}
		return nil, services.WrapInternal("failed to load KYC request", err)
	}
	return institute.Profile(
		request.RegistrationCertificate.Present(),
		request.PANCard.Present(),
	), nil
}

// Get retrieves an institute by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Institute, error) {
	institute, err := s.institutes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInstituteNotFound
		}
		return nil, services.WrapInternal("failed to get institute", err)
	}
	return institute, nil
}
