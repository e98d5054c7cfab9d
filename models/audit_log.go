package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of security event being audited
type AuditAction string

const (
	AuditActionLoginSuccess       AuditAction = "login_success"
	AuditActionLoginFailed        AuditAction = "login_failed"
	AuditActionLogout             AuditAction = "logout"
	AuditActionTokenRefreshed     AuditAction = "token_refreshed"
	AuditActionTokenReuseDetected AuditAction = "token_reuse_detected"
	AuditActionInstituteCreated   AuditAction = "institute_created"
	AuditActionStudentCreated     AuditAction = "student_created"
	AuditActionKYCSubmitted       AuditAction = "kyc_submitted"
	AuditActionKYCResolved        AuditAction = "kyc_resolved"
)

// AuditLog represents one security event in the audit trail
type AuditLog struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	PrincipalID *uuid.UUID      `json:"principal_id,omitempty" db:"principal_id"`
	Role        PrincipalRole   `json:"role,omitempty" db:"role"`
	Action      AuditAction     `json:"action" db:"action"`
	Details     json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	UserAgent   string          `json:"user_agent" db:"user_agent"`
	RequestID   string          `json:"request_id" db:"request_id"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now(),
	}
}

// WithPrincipal sets the acting principal
func (a *AuditLog) WithPrincipal(id uuid.UUID, role PrincipalRole) *AuditLog {
	a.PrincipalID = &id
	a.Role = role
	return a
}

// WithRequest sets the request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// WithDetails marshals arbitrary metadata into the details column. Marshal
// failures leave details empty rather than dropping the event.
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}
