package models

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalRole tags a token and session with the kind of account it belongs
// to. Staff sub-roles are carried separately in the staff claims.
type PrincipalRole string

const (
	RoleInstitute PrincipalRole = "institute"
	RoleParent    PrincipalRole = "parent"
	RoleStaff     PrincipalRole = "staff"
)

// RefreshSession tracks the currently valid refresh token per principal.
// Rotation overwrites TokenID; a presented refresh token whose jti differs
// from TokenID is a rotated-out token being replayed.
type RefreshSession struct {
	PrincipalID uuid.UUID     `json:"principal_id" db:"principal_id"`
	Role        PrincipalRole `json:"role" db:"role"`
	TokenID     uuid.UUID     `json:"token_id" db:"token_id"`
	ExpiresAt   time.Time     `json:"expires_at" db:"expires_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the RefreshSession model
func (RefreshSession) TableName() string {
	return "refresh_sessions"
}
