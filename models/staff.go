package models

import (
	"time"

	"github.com/google/uuid"
)

// StaffRole represents the role of an internal staff account
type StaffRole string

const (
	StaffRoleAdmin    StaffRole = "admin"
	StaffRoleSales    StaffRole = "sales"
	StaffRoleSupport  StaffRole = "support"
	StaffRoleReferral StaffRole = "referral"
)

// ValidStaffRole reports whether s is a known staff role
func ValidStaffRole(s string) bool {
	switch StaffRole(s) {
	case StaffRoleAdmin, StaffRoleSales, StaffRoleSupport, StaffRoleReferral:
		return true
	}
	return false
}

// StaffUser represents an internal staff account. The same email may hold
// distinct accounts under different roles, so login identity is (email, role).
type StaffUser struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         StaffRole `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the StaffUser model
func (StaffUser) TableName() string {
	return "staff_users"
}

// NewStaffUser creates a new StaffUser instance
func NewStaffUser(name, email string, role StaffRole, passwordHash string) *StaffUser {
	now := time.Now()
	return &StaffUser{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin returns true if the account has the admin role
func (u *StaffUser) IsAdmin() bool {
	return u.Role == StaffRoleAdmin
}

// StaffProfile is the public projection returned by the staff session endpoint
type StaffProfile struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  StaffRole `json:"role"`
}

// Profile returns the outward-facing projection of the staff account
func (u *StaffUser) Profile() *StaffProfile {
	return &StaffProfile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
