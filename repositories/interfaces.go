package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
)

// InstituteRepository defines data access for institute (tenant) records.
// Implementations must return models with the password hash populated; the
// hash is stripped at the projection layer, never stored stripped.
type InstituteRepository interface {
	// Create persists a new institute
	Create(ctx context.Context, institute *models.Institute) error

	// GetByID retrieves an institute by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Institute, error)

	// GetByEmail retrieves an institute by contact email (login identity)
	GetByEmail(ctx context.Context, email string) (*models.Institute, error)

	// Update persists profile changes
	Update(ctx context.Context, institute *models.Institute) error

	// UpdateKYCStatus mirrors the KYC request status onto the institute
	UpdateKYCStatus(ctx context.Context, id uuid.UUID, status models.KYCStatus) error
}

// StudentRepository defines data access for student/parent records. Every
// institute-facing query is scoped by institute ID; omitting the scope is a
// cross-tenant leak.
type StudentRepository interface {
	// Create persists a new student
	Create(ctx context.Context, student *models.Student) error

	// CreateBatch persists several students in one transaction
	CreateBatch(ctx context.Context, students []*models.Student) error

	// GetByID retrieves a student by ID without tenant scoping. Reserved for
	// principal resolution, where the ID comes from a verified token.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)

	// GetByParentEmail retrieves the first student registered under a parent
	// email (the parent login identity)
	GetByParentEmail(ctx context.Context, email string) (*models.Student, error)

	// ListByParentEmail retrieves all students sharing a parent email
	ListByParentEmail(ctx context.Context, email string) ([]*models.Student, error)

	// ListByInstitute retrieves all students belonging to an institute
	ListByInstitute(ctx context.Context, instituteID uuid.UUID) ([]*models.Student, error)

	// GetByIDForInstitute retrieves a student only when it belongs to the
	// given institute; otherwise not found
	GetByIDForInstitute(ctx context.Context, id, instituteID uuid.UUID) (*models.Student, error)

	// Update persists changes to a student within its institute
	Update(ctx context.Context, student *models.Student) error
}

// StaffRepository defines data access for internal staff accounts, keyed by
// the (email, role) pair
type StaffRepository interface {
	// Create persists a new staff account
	Create(ctx context.Context, user *models.StaffUser) error

	// GetByID retrieves a staff account by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.StaffUser, error)

	// GetByEmailAndRole retrieves the account registered under the pair
	GetByEmailAndRole(ctx context.Context, email string, role models.StaffRole) (*models.StaffUser, error)
}

// KYCRepository defines data access for KYC requests (one per institute)
type KYCRepository interface {
	// Upsert creates the request on first submission or replaces documents
	// and resets status on re-submission, incrementing the attempt counter
	Upsert(ctx context.Context, request *models.KYCRequest) error

	// GetByInstituteID retrieves the request owned by an institute
	GetByInstituteID(ctx context.Context, instituteID uuid.UUID) (*models.KYCRequest, error)

	// UpdateStatus flips the request status only when attempt still matches
	// the stored attempt; a stale attempt is a no-op and returns false
	UpdateStatus(ctx context.Context, id uuid.UUID, attempt int, status models.KYCStatus) (bool, error)
}

// RefreshSessionRepository tracks the currently valid refresh token per
// principal, enabling rotated-out token reuse detection
type RefreshSessionRepository interface {
	// Put stores or replaces the session for a principal
	Put(ctx context.Context, session *models.RefreshSession) error

	// Get retrieves the session for a principal
	Get(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) (*models.RefreshSession, error)

	// Delete removes the session for a principal; deleting an absent session
	// is not an error
	Delete(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) error
}

// AuditRepository stores the security event trail
type AuditRepository interface {
	// Insert records one audit event
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByPrincipal returns the most recent events for a principal,
	// newest first
	ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit int) ([]*models.AuditLog, error)
}

// Repositories bundles every repository instance for dependency wiring
type Repositories struct {
	Institutes      InstituteRepository
	Students        StudentRepository
	Staff           StaffRepository
	KYCRequests     KYCRepository
	RefreshSessions RefreshSessionRepository
	AuditLogs       AuditRepository
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Commits when the function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}
