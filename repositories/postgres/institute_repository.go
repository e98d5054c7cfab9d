package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// InstituteRepository implements the repositories.InstituteRepository interface
type InstituteRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInstituteRepository creates a new institute repository
func NewInstituteRepository(db *DB, logger *zap.Logger) repositories.InstituteRepository {
	return &InstituteRepository{
		db:     db,
		logger: logger,
	}
}

const instituteColumns = `id, name, type, contact_email, contact_person, phone, address, password_hash, kyc_status, created_at, updated_at`

// Create creates a new institute
func (r *InstituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	query := `
		INSERT INTO institutes (` + instituteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		institute.ID,
		institute.Name,
		institute.Type,
		institute.ContactEmail,
		institute.ContactPerson,
		institute.Phone,
		institute.Address,
		institute.PasswordHash,
		institute.KYCStatus,
		institute.CreatedAt,
		institute.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create institute: %w", err)
	}

	r.logger.Debug("institute created",
		zap.String("id", institute.ID.String()),
		zap.String("contact_email", institute.ContactEmail))
	return nil
}

func (r *InstituteRepository) scanInstitute(row *sql.Row) (*models.Institute, error) {
	institute := &models.Institute{}
	err := row.Scan(
		&institute.ID,
		&institute.Name,
		&institute.Type,
		&institute.ContactEmail,
		&institute.ContactPerson,
		&institute.Phone,
		&institute.Address,
		&institute.PasswordHash,
		&institute.KYCStatus,
		&institute.CreatedAt,
		&institute.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get institute: %w", err)
	}
	return institute, nil
}

// GetByID retrieves an institute by ID
func (r *InstituteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Institute, error) {
	query := `SELECT ` + instituteColumns + ` FROM institutes WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	return r.scanInstitute(executor.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an institute by contact email
func (r *InstituteRepository) GetByEmail(ctx context.Context, email string) (*models.Institute, error) {
	query := `SELECT ` + instituteColumns + ` FROM institutes WHERE contact_email = $1`

	executor := GetExecutor(ctx, r.db)
	return r.scanInstitute(executor.QueryRowContext(ctx, query, email))
}

// Update updates an institute's profile fields
func (r *InstituteRepository) Update(ctx context.Context, institute *models.Institute) error {
	query := `
		UPDATE institutes
		SET name = $2,
		    type = $3,
		    contact_person = $4,
		    phone = $5,
		    address = $6,
		    updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		institute.ID,
		institute.Name,
		institute.Type,
		institute.ContactPerson,
		institute.Phone,
		institute.Address,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update institute: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("institute updated", zap.String("id", institute.ID.String()))
	return nil
}

// UpdateKYCStatus mirrors the KYC request status onto the institute record
func (r *InstituteRepository) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status models.KYCStatus) error {
	query := `
		UPDATE institutes
		SET kyc_status = $2,
		    updated_at = $3
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update institute KYC status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("institute KYC status updated",
		zap.String("id", id.String()),
		zap.String("status", string(status)))
	return nil
}
