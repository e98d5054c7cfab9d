package middleware

import (
	"context"

	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *auth.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*auth.Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// InstituteFromContext returns the institute principal, nil when the request
// was authenticated as a different role
func InstituteFromContext(ctx context.Context) *models.Institute {
	principal := GetPrincipalFromContext(ctx)
	if principal == nil || principal.Role != models.RoleInstitute {
		return nil
	}
	return principal.Institute
}

// StudentFromContext returns the parent/student principal, nil when the
// request was authenticated as a different role
func StudentFromContext(ctx context.Context) *models.Student {
	principal := GetPrincipalFromContext(ctx)
	if principal == nil || principal.Role != models.RoleParent {
		return nil
	}
	return principal.Student
}

// StaffFromContext returns the staff principal, nil when the request was
// authenticated as a different role
func StaffFromContext(ctx context.Context) *models.StaffUser {
	principal := GetPrincipalFromContext(ctx)
	if principal == nil || principal.Role != models.RoleStaff {
		return nil
	}
	return principal.Staff
}
