package models

import (
	"time"

	"github.com/google/uuid"
)

// KYCDocumentType identifies one of the two document slots per KYC request
type KYCDocumentType string

const (
	KYCDocumentRegistration KYCDocumentType = "registration_certificate"
	KYCDocumentPANCard      KYCDocumentType = "pan_card"
)

// ValidKYCDocumentType reports whether s names a known document slot
func ValidKYCDocumentType(s string) bool {
	switch KYCDocumentType(s) {
	case KYCDocumentRegistration, KYCDocumentPANCard:
		return true
	}
	return false
}

// KYCDocument is an opaque uploaded document
type KYCDocument struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Present reports whether a document has been uploaded into this slot
func (d *KYCDocument) Present() bool {
	return d != nil && len(d.Data) > 0
}

// KYCRequest holds the verification state for exactly one institute.
// Attempt increments on every submission and acts as the idempotency key for
// the deferred verifier: a status flip carrying a stale attempt is ignored.
type KYCRequest struct {
	ID                      uuid.UUID    `json:"id" db:"id"`
	InstituteID             uuid.UUID    `json:"institute_id" db:"institute_id"`
	Status                  KYCStatus    `json:"status" db:"status"`
	Attempt                 int          `json:"attempt" db:"attempt"`
	RegistrationCertificate *KYCDocument `json:"registration_certificate,omitempty"`
	PANCard                 *KYCDocument `json:"pan_card,omitempty"`
	CreatedAt               time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the KYCRequest model
func (KYCRequest) TableName() string {
	return "kyc_requests"
}

// NewKYCRequest creates the first verification request for an institute
func NewKYCRequest(instituteID uuid.UUID, registration, pan *KYCDocument) *KYCRequest {
	now := time.Now()
	return &KYCRequest{
		ID:                      uuid.New(),
		InstituteID:             instituteID,
		Status:                  KYCStatusUnderReview,
		Attempt:                 1,
		RegistrationCertificate: registration,
		PANCard:                 pan,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// Document returns the document in the named slot, nil when absent
func (r *KYCRequest) Document(typ KYCDocumentType) *KYCDocument {
	switch typ {
	case KYCDocumentRegistration:
		return r.RegistrationCertificate
	case KYCDocumentPANCard:
		return r.PANCard
	}
	return nil
}

// KYCStatusResponse is the projection returned by the KYC status endpoint
type KYCStatusResponse struct {
	Status          KYCStatus `json:"status"`
	HasRegistration bool      `json:"has_registration_certificate"`
	HasPANCard      bool      `json:"has_pan_card"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusResponse returns the outward-facing view of the request
func (r *KYCRequest) StatusResponse() *KYCStatusResponse {
	return &KYCStatusResponse{
		Status:          r.Status,
		HasRegistration: r.RegistrationCertificate.Present(),
		HasPANCard:      r.PANCard.Present(),
		UpdatedAt:       r.UpdatedAt,
	}
}
