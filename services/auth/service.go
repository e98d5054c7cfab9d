// Package auth implements credential verification, token pair issuance,
// refresh rotation, and principal resolution for all three account kinds.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/token"
	"go.uber.org/zap"
)

// TokenPair bundles a freshly minted access and refresh token
type TokenPair struct {
	Access  string
	Refresh string
}

// Principal is the authenticated identity attached to a request. Exactly one
// of the role-specific fields is non-nil, matching Role.
type Principal struct {
	Role      models.PrincipalRole
	Institute *models.Institute
	Student   *models.Student
	Staff     *models.StaffUser
}

// ID returns the principal's subject id
func (p *Principal) ID() uuid.UUID {
	switch p.Role {
	case models.RoleInstitute:
		return p.Institute.ID
	case models.RoleParent:
		return p.Student.ID
	case models.RoleStaff:
		return p.Staff.ID
	}
	return uuid.Nil
}

// Service coordinates the credential store, token service, and refresh
// session tracking
type Service struct {
	institutes repositories.InstituteRepository
	students   repositories.StudentRepository
	staff      repositories.StaffRepository
	sessions   repositories.RefreshSessionRepository
	tokens     *token.Service
	hasher     *Hasher
	logger     *zap.Logger
}

// NewService creates a new auth service
func NewService(
	institutes repositories.InstituteRepository,
	students repositories.StudentRepository,
	staff repositories.StaffRepository,
	sessions repositories.RefreshSessionRepository,
	tokens *token.Service,
	hasher *Hasher,
	logger *zap.Logger,
) *Service {
	return &Service{
		institutes: institutes,
		students:   students,
		staff:      staff,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		logger:     logger,
	}
}

// Tokens exposes the underlying token service for cookie lifetime wiring
func (s *Service) Tokens() *token.Service {
	return s.tokens
}

// issuePair mints an access/refresh pair and records the refresh jti so a
// rotated-out refresh token can be recognized later
func (s *Service) issuePair(ctx context.Context, payload token.Payload) (*TokenPair, error) {
	access, _, err := s.tokens.IssueAccessToken(payload)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := s.tokens.IssueRefreshToken(payload)
	if err != nil {
		return nil, err
	}

	session := &models.RefreshSession{
		PrincipalID: payload.SubjectID,
		Role:        payload.Role,
		TokenID:     jti,
		ExpiresAt:   time.Now().Add(s.tokens.RefreshTTL()),
		UpdatedAt:   time.Now(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, services.WrapInternal("failed to store refresh session", err)
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// LoginInstitute authenticates an institute by contact email and password
func (s *Service) LoginInstitute(ctx context.Context, email, password string) (*models.Institute, *TokenPair, error) {
	institute, err := s.institutes.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, services.ErrInvalidCredentials
		}
		return nil, nil, services.WrapInternal("failed to look up institute", err)
	}
	if err := s.hasher.Compare(institute.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, token.Payload{
		SubjectID:     institute.ID,
		Role:          models.RoleInstitute,
		Email:         institute.ContactEmail,
		InstituteName: institute.Name,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("institute logged in", zap.String("institute_id", institute.ID.String()))
	return institute, pair, nil
}

// LoginParent authenticates a parent by parent email and password. The
// subject is the first student registered under the email.
func (s *Service) LoginParent(ctx context.Context, email, password string) (*models.Student, *TokenPair, error) {
	student, err := s.students.GetByParentEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, services.ErrInvalidCredentials
		}
		return nil, nil, services.WrapInternal("failed to look up student", err)
	}
	if err := s.hasher.Compare(student.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, token.Payload{
		SubjectID:     student.ID,
		Role:          models.RoleParent,
		Email:         student.ParentEmail,
		InstituteName: student.InstituteName,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("parent logged in", zap.String("student_id", student.ID.String()))
	return student, pair, nil
}

// LoginStaff authenticates a staff account by the (email, role) pair
func (s *Service) LoginStaff(ctx context.Context, email, password string, role models.StaffRole) (*models.StaffUser, *TokenPair, error) {
	user, err := s.staff.GetByEmailAndRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, services.ErrInvalidCredentials
		}
		return nil, nil, services.WrapInternal("failed to look up staff user", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, token.Payload{
		SubjectID: user.ID,
		Role:      models.RoleStaff,
		Email:     user.Email,
		StaffRole: user.Role,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("staff user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return user, pair, nil
}

// Resolve loads the full principal record referenced by verified claims.
// A token whose subject no longer exists in the store fails closed.
func (s *Service) Resolve(ctx context.Context, claims *token.Claims) (*Principal, error) {
	subjectID, err := claims.SubjectID()
	if err != nil {
		return nil, services.ErrInvalidToken
	}

	switch claims.Role {
	case models.RoleInstitute:
		institute, err := s.institutes.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrPrincipalGone
			}
			return nil, services.WrapInternal("failed to resolve institute", err)
		}
		return &Principal{Role: models.RoleInstitute, Institute: institute}, nil

	case models.RoleParent:
		student, err := s.students.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrPrincipalGone
			}
			return nil, services.WrapInternal("failed to resolve student", err)
		}
		return &Principal{Role: models.RoleParent, Student: student}, nil

	case models.RoleStaff:
		user, err := s.staff.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrPrincipalGone
			}
			return nil, services.WrapInternal("failed to resolve staff user", err)
		}
		return &Principal{Role: models.RoleStaff, Staff: user}, nil
	}

	return nil, services.ErrInvalidToken
}

// Refresh rotates a refresh token: verify, confirm the principal still
// exists, confirm the jti is the currently issued one, then mint a new pair.
// Presenting a rotated-out token deletes the session entirely, forcing a
// fresh login.
func (s *Service) Refresh(ctx context.Context, refreshToken string, expectedRole models.PrincipalRole) (*Principal, *TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, nil, services.ErrInvalidToken
	}
	if claims.Role != expectedRole {
		return nil, nil, services.ErrInvalidToken
	}

	principal, err := s.Resolve(ctx, claims)
	if err != nil {
		return nil, nil, err
	}

	jti, err := claims.TokenID()
	if err != nil {
		return nil, nil, services.ErrInvalidToken
	}

	session, err := s.sessions.Get(ctx, principal.ID(), claims.Role)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, services.ErrInvalidToken
		}
		return nil, nil, services.WrapInternal("failed to load refresh session", err)
	}
	if session.TokenID != jti {
		// Rotated-out token replayed. Treat as theft signal and force logout.
		s.logger.Warn("rotated-out refresh token reused",
			zap.String("principal_id", principal.ID().String()),
			zap.String("role", string(claims.Role)))
		if err := s.sessions.Delete(ctx, principal.ID(), claims.Role); err != nil {
			s.logger.Error("failed to delete refresh session", zap.Error(err))
		}
		return nil, nil, services.ErrTokenReuse
	}

	pair, err := s.issuePair(ctx, token.Payload{
		SubjectID:     principal.ID(),
		Role:          claims.Role,
		Email:         claims.Email,
		InstituteName: claims.InstituteName,
		StaffRole:     claims.StaffRole,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("refresh token rotated",
		zap.String("principal_id", principal.ID().String()),
		zap.String("role", string(claims.Role)))
	return principal, pair, nil
}

// Logout deletes the refresh session for a principal. Safe to call twice.
func (s *Service) Logout(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) error {
	if err := s.sessions.Delete(ctx, principalID, role); err != nil {
		return services.WrapInternal("failed to delete refresh session", err)
	}
	return nil
}
