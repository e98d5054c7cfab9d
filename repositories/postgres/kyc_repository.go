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
	"go.uber.org/zap"
)

// KYCRepository implements the repositories.KYCRepository interface
type KYCRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKYCRepository creates a new KYC repository
func NewKYCRepository(db *DB, logger *zap.Logger) repositories.KYCRepository {
	return &KYCRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates the request on first submission or replaces the documents,
// resets status to under_review, and bumps the attempt on re-submission.
// The incremented attempt is written back to request.Attempt.
func (r *KYCRepository) Upsert(ctx context.Context, request *models.KYCRequest) error {
	query := `
		INSERT INTO kyc_requests (
			id, institute_id, status, attempt,
			registration_filename, registration_content_type, registration_data,
			pan_filename, pan_content_type, pan_data,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (institute_id) DO UPDATE
		SET status = EXCLUDED.status,
		    attempt = kyc_requests.attempt + 1,
		    registration_filename = EXCLUDED.registration_filename,
		    registration_content_type = EXCLUDED.registration_content_type,
		    registration_data = EXCLUDED.registration_data,
		    pan_filename = EXCLUDED.pan_filename,
		    pan_content_type = EXCLUDED.pan_content_type,
		    pan_data = EXCLUDED.pan_data,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, attempt
	`

	var (
		regFilename, regContentType sql.NullString
		regData                     []byte
		panFilename, panContentType sql.NullString
		panData                     []byte
	)
	if request.RegistrationCertificate != nil {
		regFilename = sql.NullString{String: request.RegistrationCertificate.Filename, Valid: true}
		regContentType = sql.NullString{String: request.RegistrationCertificate.ContentType, Valid: true}
		regData = request.RegistrationCertificate.Data
	}
	if request.PANCard != nil {
		panFilename = sql.NullString{String: request.PANCard.Filename, Valid: true}
		panContentType = sql.NullString{String: request.PANCard.ContentType, Valid: true}
		panData = request.PANCard.Data
	}

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		request.ID,
		request.InstituteID,
		request.Status,
		request.Attempt,
		regFilename,
		regContentType,
		regData,
		panFilename,
		panContentType,
		panData,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID, &request.Attempt)

	if err != nil {
		return fmt.Errorf("failed to upsert KYC request: %w", err)
	}

	r.logger.Debug("KYC request upserted",
		zap.String("id", request.ID.String()),
		zap.String("institute_id", request.InstituteID.String()),
		zap.Int("attempt", request.Attempt))
	return nil
}

// GetByInstituteID retrieves the request owned by an institute
func (r *KYCRepository) GetByInstituteID(ctx context.Context, instituteID uuid.UUID) (*models.KYCRequest, error) {
	query := `
		SELECT id, institute_id, status, attempt,
		       registration_filename, registration_content_type, registration_data,
		       pan_filename, pan_content_type, pan_data,
		       created_at, updated_at
		FROM kyc_requests
		WHERE institute_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	request := &models.KYCRequest{}

	var (
		regFilename, regContentType sql.NullString
		regData                     []byte
		panFilename, panContentType sql.NullString
		panData                     []byte
	)

	err := executor.QueryRowContext(ctx, query, instituteID).Scan(
		&request.ID,
		&request.InstituteID,
		&request.Status,
		&request.Attempt,
		&regFilename,
		&regContentType,
		&regData,
		&panFilename,
		&panContentType,
		&panData,
		&request.CreatedAt,
		&request.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get KYC request: %w", err)
	}

	if regFilename.Valid {
		request.RegistrationCertificate = &models.KYCDocument{
			Filename:    regFilename.String,
			ContentType: regContentType.String,
			Data:        regData,
		}
	}
	if panFilename.Valid {
		request.PANCard = &models.KYCDocument{
			Filename:    panFilename.String,
			ContentType: panContentType.String,
			Data:        panData,
		}
	}

	return request, nil
}

// UpdateStatus flips the request status only when attempt still matches the
// stored attempt. Returns false when a newer submission superseded this one.
func (r *KYCRepository) UpdateStatus(ctx context.Context, id uuid.UUID, attempt int, status models.KYCStatus) (bool, error) {
	query := `
		UPDATE kyc_requests
		SET status = $3,
		    updated_at = $4
		WHERE id = $1 AND attempt = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, attempt, status, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to update KYC status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		r.logger.Debug("KYC status flip skipped, attempt superseded",
			zap.String("id", id.String()),
			zap.Int("attempt", attempt))
		return false, nil
	}

	r.logger.Debug("KYC status updated",
		zap.String("id", id.String()),
		zap.String("status", string(status)),
		zap.Int("attempt", attempt))
	return true, nil
}
