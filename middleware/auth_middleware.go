package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/services/token"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// AccessTokenCookie is the cookie carrying the short-lived access token
const AccessTokenCookie = "accessToken"

// TokenVerifier verifies a signed token of the given kind
type TokenVerifier interface {
	Verify(tokenString string, kind token.Kind) (*token.Claims, error)
}

// PrincipalResolver loads the full principal record referenced by claims
type PrincipalResolver interface {
	Resolve(ctx context.Context, claims *token.Claims) (*auth.Principal, error)
}

// AuthMiddleware authenticates requests from the access-token cookie and
// attaches the resolved principal to the request context. There is no silent
// refresh here: an expired access token always fails closed and the client
// must call the refresh endpoint.
type AuthMiddleware struct {
	tokens   TokenVerifier
	resolver PrincipalResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens TokenVerifier, resolver PrincipalResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		resolver: resolver,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a valid access-token cookie.
// Missing cookie, failed verification, and a principal that no longer exists
// in the store are all a uniform 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimw.GetReqID(ctx)

		cookie, err := r.Cookie(AccessTokenCookie)
		if err != nil || cookie.Value == "" {
			m.logger.Warn("missing access token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		claims, err := m.tokens.Verify(cookie.Value, token.KindAccess)
		if err != nil {
			m.logger.Warn("access token verification failed",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		principal, err := m.resolver.Resolve(ctx, claims)
		if err != nil {
			m.logger.Warn("principal resolution failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("principal_id", principal.ID().String()),
			zap.String("role", string(principal.Role)))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// RequireRole gates a route on the principal kind. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(role models.PrincipalRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", chimw.GetReqID(ctx)))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if principal.Role != role {
				m.logger.Warn("role mismatch",
					zap.String("request_id", chimw.GetReqID(ctx)),
					zap.String("required", string(role)),
					zap.String("actual", string(principal.Role)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaffRole gates a route on a specific staff sub-role. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireStaffRole(role models.StaffRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			staff := StaffFromContext(ctx)
			if staff == nil {
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}
			if staff.Role != role && !staff.IsAdmin() {
				m.logger.Warn("staff role mismatch",
					zap.String("request_id", chimw.GetReqID(ctx)),
					zap.String("required", string(role)),
					zap.String("actual", string(staff.Role)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
