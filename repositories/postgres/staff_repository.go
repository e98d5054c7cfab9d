package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"go.uber.org/zap"
)

// StaffRepository implements the repositories.StaffRepository interface
type StaffRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStaffRepository creates a new staff repository
func NewStaffRepository(db *DB, logger *zap.Logger) repositories.StaffRepository {
	return &StaffRepository{
		db:     db,
		logger: logger,
	}
}

const staffColumns = `id, name, email, role, password_hash, created_at, updated_at`

// Create creates a new staff account
func (r *StaffRepository) Create(ctx context.Context, user *models.StaffUser) error {
	query := `
		INSERT INTO staff_users (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create staff user: %w", err)
	}

	r.logger.Debug("staff user created",
		zap.String("id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return nil
}

func (r *StaffRepository) scanStaff(row *sql.Row) (*models.StaffUser, error) {
	user := &models.StaffUser{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a staff account by ID
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StaffUser, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	return r.scanStaff(executor.QueryRowContext(ctx, query, id))
}

// GetByEmailAndRole retrieves the account registered under the (email, role)
// pair. The role disambiguates accounts sharing an email across role scopes.
func (r *StaffRepository) GetByEmailAndRole(ctx context.Context, email string, role models.StaffRole) (*models.StaffUser, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE email = $1 AND role = $2`

	executor := GetExecutor(ctx, r.db)
	return r.scanStaff(executor.QueryRowContext(ctx, query, email, role))
}
