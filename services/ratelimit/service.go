// Package ratelimit throttles login attempts with a sliding window backed by
// PostgreSQL. The window is counted per scope key, typically the client IP.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learn2pay/backend/config"
	"go.uber.org/zap"
)

// Result reports the outcome of a limit check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and records login attempts
type Limiter struct {
	db     *sql.DB
	cfg    config.RateLimitConfig
	logger *zap.Logger
}

// NewLimiter creates a new Limiter
func NewLimiter(db *sql.DB, cfg config.RateLimitConfig, logger *zap.Logger) *Limiter {
	return &Limiter{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether throttling is configured
func (l *Limiter) Enabled() bool {
	return l.cfg.LoginAttempts > 0 && l.cfg.LoginWindow > 0
}

// Check counts attempts in the sliding window for the scope key. It does not
// record anything; call Record for each attempt.
func (l *Limiter) Check(ctx context.Context, scopeKey string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	now := time.Now()
	windowStart := now.Add(-l.cfg.LoginWindow)

	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE scope_key = $1
		  AND attempted_at >= $2
	`

	var count int
	if err := l.db.QueryRowContext(ctx, query, scopeKey, windowStart).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}

	result := &Result{
		Allowed:   count < l.cfg.LoginAttempts,
		Remaining: l.cfg.LoginAttempts - count,
		ResetAt:   now.Add(l.cfg.LoginWindow),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

// Record stores one attempt for the scope key
func (l *Limiter) Record(ctx context.Context, scopeKey string) error {
	if !l.Enabled() {
		return nil
	}

	query := `
		INSERT INTO login_attempts (scope_key, attempted_at)
		VALUES ($1, $2)
	`
	if _, err := l.db.ExecContext(ctx, query, scopeKey, time.Now()); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// Cleanup removes attempts older than the configured retention. Returns the
// number of rows deleted.
func (l *Limiter) Cleanup(ctx context.Context) (int64, error) {
	retention := l.cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	cutoff := time.Now().Add(-retention)

	result, err := l.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up login attempts: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		l.logger.Debug("cleaned up login attempts", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
