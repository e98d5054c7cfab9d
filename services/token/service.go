// Package token issues and verifies the access/refresh token pair carried in
// HTTP-only cookies. Verification failures are deliberately uniform: callers
// cannot tell a malformed token from an expired or wrong-kind one.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services"
	"go.uber.org/zap"
)

// Kind distinguishes the two token flavors. A refresh token presented where
// an access token is expected fails verification.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload embedded in both token kinds
type Claims struct {
	Role          models.PrincipalRole `json:"role"`
	Email         string               `json:"email"`
	InstituteName string               `json:"institute_name,omitempty"`
	StaffRole     models.StaffRole     `json:"staff_role,omitempty"`
	Kind          Kind                 `json:"kind"`
	jwt.RegisteredClaims
}

// SubjectID returns the principal id parsed from the subject claim
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenID returns the jti parsed as a UUID
func (c *Claims) TokenID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// Payload carries the identity fields encoded into a token pair
type Payload struct {
	SubjectID     uuid.UUID
	Role          models.PrincipalRole
	Email         string
	InstituteName string
	StaffRole     models.StaffRole
}

// Service signs and verifies tokens with a shared HS256 secret
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewService creates a new token service from auth configuration
func NewService(cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		logger:     logger,
	}
}

// AccessTTL returns the configured access token lifetime
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *Service) issue(payload Payload, kind Kind, ttl time.Duration) (string, uuid.UUID, error) {
	now := time.Now().UTC()
	jti := uuid.New()

	claims := Claims{
		Role:          payload.Role,
		Email:         payload.Email,
		InstituteName: payload.InstituteName,
		StaffRole:     payload.StaffRole,
		Kind:          kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   payload.SubjectID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", uuid.Nil, services.WrapInternal("failed to sign token", err)
	}
	return signed, jti, nil
}

// IssueAccessToken mints a short-lived access token
func (s *Service) IssueAccessToken(payload Payload) (string, uuid.UUID, error) {
	return s.issue(payload, KindAccess, s.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token
func (s *Service) IssueRefreshToken(payload Payload) (string, uuid.UUID, error) {
	return s.issue(payload, KindRefresh, s.refreshTTL)
}

// Verify checks signature, expiry, and kind. Every failure maps to
// services.ErrInvalidToken so the boundary cannot leak why a token failed.
func (s *Service) Verify(tokenString string, kind Kind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		s.logger.Debug("token verification failed", zap.Error(err))
		return nil, services.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, services.ErrInvalidToken
	}
	if claims.Kind != kind {
		s.logger.Debug("token kind mismatch",
			zap.String("got", string(claims.Kind)),
			zap.String("want", string(kind)))
		return nil, services.ErrInvalidToken
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, services.ErrInvalidToken
	}
	if _, err := claims.TokenID(); err != nil {
		return nil, services.ErrInvalidToken
	}

	return claims, nil
}
