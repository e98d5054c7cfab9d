package models

import (
	"time"

	"github.com/google/uuid"
)

// InstituteType classifies the kind of educational institute
type InstituteType string

const (
	InstituteTypeSchool     InstituteType = "school"
	InstituteTypeCollege    InstituteType = "college"
	InstituteTypeUniversity InstituteType = "university"
	InstituteTypeAcademy    InstituteType = "academy"
	InstituteTypeOther      InstituteType = "other"
)

// KYCStatus represents the verification state of an institute
type KYCStatus string

const (
	KYCStatusNotStarted  KYCStatus = "not_started"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusVerified    KYCStatus = "verified"
	KYCStatusRejected    KYCStatus = "rejected"
)

// Institute represents a tenant in the multi-tenant system.
// ContactEmail is the login identity; PasswordHash never leaves the server.
type Institute struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Name          string        `json:"institute_name" db:"name"`
	Type          InstituteType `json:"institute_type" db:"type"`
	ContactEmail  string        `json:"contact_email" db:"contact_email"`
	ContactPerson string        `json:"contact_person" db:"contact_person"`
	Phone         string        `json:"phone" db:"phone"`
	Address       string        `json:"address" db:"address"`
	PasswordHash  string        `json:"-" db:"password_hash"`
	KYCStatus     KYCStatus     `json:"kyc_status" db:"kyc_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Institute model
func (Institute) TableName() string {
	return "institutes"
}

// NewInstitute creates a new Institute instance with KYC not started
func NewInstitute(name string, typ InstituteType, contactEmail, contactPerson, phone, address, passwordHash string) *Institute {
	now := time.Now()
	return &Institute{
		ID:            uuid.New(),
		Name:          name,
		Type:          typ,
		ContactEmail:  contactEmail,
		ContactPerson: contactPerson,
		Phone:         phone,
		Address:       address,
		PasswordHash:  passwordHash,
		KYCStatus:     KYCStatusNotStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsVerified returns true once KYC has completed successfully
func (i *Institute) IsVerified() bool {
	return i.KYCStatus == KYCStatusVerified
}

// InstituteProfile is the public projection returned by session and profile
// endpoints. It carries document-presence flags derived from the KYC request.
type InstituteProfile struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"institute_name"`
	Type            InstituteType `json:"institute_type"`
	ContactEmail    string        `json:"contact_email"`
	ContactPerson   string        `json:"contact_person"`
	Phone           string        `json:"phone"`
	Address         string        `json:"address"`
	KYCStatus       KYCStatus     `json:"kyc_status"`
	HasRegistration bool          `json:"has_registration_certificate"`
	HasPANCard      bool          `json:"has_pan_card"`
}

// Profile returns the outward-facing projection of the institute
func (i *Institute) Profile(hasRegistration, hasPAN bool) *InstituteProfile {
	return &InstituteProfile{
		ID:              i.ID,
		Name:            i.Name,
		Type:            i.Type,
		ContactEmail:    i.ContactEmail,
		ContactPerson:   i.ContactPerson,
		Phone:           i.Phone,
		Address:         i.Address,
		KYCStatus:       i.KYCStatus,
		HasRegistration: hasRegistration,
		HasPANCard:      hasPAN,
	}
}

// ValidInstituteType reports whether s is a known institute type
func ValidInstituteType(s string) bool {
	switch InstituteType(s) {
	case InstituteTypeSchool, InstituteTypeCollege, InstituteTypeUniversity,
		InstituteTypeAcademy, InstituteTypeOther:
		return true
	}
	return false
}
