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

// RefreshSessionRepository implements the repositories.RefreshSessionRepository interface
type RefreshSessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRefreshSessionRepository creates a new refresh session repository
func NewRefreshSessionRepository(db *DB, logger *zap.Logger) repositories.RefreshSessionRepository {
	return &RefreshSessionRepository{
		db:     db,
		logger: logger,
	}
}

// Put stores or replaces the session for a principal
func (r *RefreshSessionRepository) Put(ctx context.Context, session *models.RefreshSession) error {
	query := `
		INSERT INTO refresh_sessions (principal_id, role, token_id, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principal_id, role) DO UPDATE
		SET token_id = EXCLUDED.token_id,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		session.PrincipalID,
		session.Role,
		session.TokenID,
		session.ExpiresAt,
		session.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to store refresh session: %w", err)
	}

	r.logger.Debug("refresh session stored",
		zap.String("principal_id", session.PrincipalID.String()),
		zap.String("role", string(session.Role)))
	return nil
}

// Get retrieves the session for a principal
func (r *RefreshSessionRepository) Get(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) (*models.RefreshSession, error) {
	query := `
		SELECT principal_id, role, token_id, expires_at, updated_at
		FROM refresh_sessions
		WHERE principal_id = $1 AND role = $2
	`

	executor := GetExecutor(ctx, r.db)
	session := &models.RefreshSession{}

	err := executor.QueryRowContext(ctx, query, principalID, role).Scan(
		&session.PrincipalID,
		&session.Role,
		&session.TokenID,
		&session.ExpiresAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh session: %w", err)
	}

	return session, nil
}

// Delete removes the session for a principal. Deleting an absent session is
// not an error, logout stays idempotent.
func (r *RefreshSessionRepository) Delete(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) error {
	query := `DELETE FROM refresh_sessions WHERE principal_id = $1 AND role = $2`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, principalID, role); err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}

	r.logger.Debug("refresh session deleted",
		zap.String("principal_id", principalID.String()),
		zap.String("role", string(role)))
	return nil
}
