package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learn2pay/backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Institutes table (tenants)
		CREATE TABLE IF NOT EXISTS institutes (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			contact_email VARCHAR(255) NOT NULL UNIQUE,
			contact_person VARCHAR(255) NOT NULL,
			phone VARCHAR(50),
			address TEXT,
			password_hash VARCHAR(255) NOT NULL,
			kyc_status VARCHAR(50) NOT NULL DEFAULT 'not_started',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Students table (parent-facing records)
		CREATE TABLE IF NOT EXISTS students (
			id UUID PRIMARY KEY,
			institute_id UUID NOT NULL REFERENCES institutes(id) ON DELETE CASCADE,
			institute_name VARCHAR(255) NOT NULL,
			student_name VARCHAR(255) NOT NULL,
			parent_name VARCHAR(255) NOT NULL,
			parent_email VARCHAR(255) NOT NULL,
			parent_phone VARCHAR(50),
			password_hash VARCHAR(255) NOT NULL,
			date_of_birth DATE NOT NULL,
			grade VARCHAR(50) NOT NULL,
			roll_number VARCHAR(100) NOT NULL,
			address TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(institute_id, roll_number)
		);

		-- Staff accounts table, identity is the (email, role) pair
		CREATE TABLE IF NOT EXISTS staff_users (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(email, role)
		);

		-- KYC requests table, exactly one per institute
		CREATE TABLE IF NOT EXISTS kyc_requests (
			id UUID PRIMARY KEY,
			institute_id UUID NOT NULL UNIQUE REFERENCES institutes(id) ON DELETE CASCADE,
			status VARCHAR(50) NOT NULL DEFAULT 'under_review',
			attempt INTEGER NOT NULL DEFAULT 1,
			registration_filename VARCHAR(255),
			registration_content_type VARCHAR(255),
			registration_data BYTEA,
			pan_filename VARCHAR(255),
			pan_content_type VARCHAR(255),
			pan_data BYTEA,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Refresh sessions table, current refresh token id per principal
		CREATE TABLE IF NOT EXISTS refresh_sessions (
			principal_id UUID NOT NULL,
			role VARCHAR(50) NOT NULL,
			token_id UUID NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (principal_id, role)
		);

		-- Audit trail of security events
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			principal_id UUID,
			role VARCHAR(50) NOT NULL DEFAULT '',
			action VARCHAR(100) NOT NULL,
			details JSONB,
			ip_address VARCHAR(100) NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			request_id VARCHAR(100) NOT NULL DEFAULT '',
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Login attempts table, sliding-window login throttling
		CREATE TABLE IF NOT EXISTS login_attempts (
			scope_key VARCHAR(255) NOT NULL,
			attempted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_institutes_contact_email ON institutes(contact_email);
		CREATE INDEX IF NOT EXISTS idx_students_institute_id ON students(institute_id);
		CREATE INDEX IF NOT EXISTS idx_students_parent_email ON students(parent_email);
		CREATE INDEX IF NOT EXISTS idx_staff_users_email_role ON staff_users(email, role);
		CREATE INDEX IF NOT EXISTS idx_kyc_requests_institute_id ON kyc_requests(institute_id);
		CREATE INDEX IF NOT EXISTS idx_refresh_sessions_expires_at ON refresh_sessions(expires_at);
		CREATE INDEX IF NOT EXISTS idx_login_attempts_scope_key ON login_attempts(scope_key, attempted_at);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_principal_id ON audit_logs(principal_id, timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
