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

// StudentRepository implements the repositories.StudentRepository interface
type StudentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *DB, logger *zap.Logger) repositories.StudentRepository {
	return &StudentRepository{
		db:     db,
		logger: logger,
	}
}

const studentColumns = `id, institute_id, institute_name, student_name, parent_name, parent_email, parent_phone, password_hash, date_of_birth, grade, roll_number, address, created_at, updated_at`

const insertStudentQuery = `
	INSERT INTO students (` + studentColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

func studentArgs(s *models.Student) []interface{} {
	return []interface{}{
		s.ID,
		s.InstituteID,
		s.InstituteName,
		s.StudentName,
		s.ParentName,
		s.ParentEmail,
		s.ParentPhone,
		s.PasswordHash,
		s.DateOfBirth,
		s.Grade,
		s.RollNumber,
		s.Address,
		s.CreatedAt,
		s.UpdatedAt,
	}
}

// Create creates a new student
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, insertStudentQuery, studentArgs(student)...)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	r.logger.Debug("student created",
		zap.String("id", student.ID.String()),
		zap.String("institute_id", student.InstituteID.String()))
	return nil
}

// CreateBatch persists several students. Callers run it inside a transaction
// via the transaction manager so the context carries the executor.
func (r *StudentRepository) CreateBatch(ctx context.Context, students []*models.Student) error {
	executor := GetExecutor(ctx, r.db)
	for _, student := range students {
		if _, err := executor.ExecContext(ctx, insertStudentQuery, studentArgs(student)...); err != nil {
			if isUniqueViolation(err) {
				return repositories.ErrDuplicate
			}
			return fmt.Errorf("failed to create student %s: %w", student.RollNumber, err)
		}
	}

	r.logger.Debug("student batch created", zap.Int("count", len(students)))
	return nil
}

func scanStudentRow(scan func(dest ...interface{}) error) (*models.Student, error) {
	student := &models.Student{}
	err := scan(
		&student.ID,
		&student.InstituteID,
		&student.InstituteName,
		&student.StudentName,
		&student.ParentName,
		&student.ParentEmail,
		&student.ParentPhone,
		&student.PasswordHash,
		&student.DateOfBirth,
		&student.Grade,
		&student.RollNumber,
		&student.Address,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (r *StudentRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Student, error) {
	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, args...)
	student, err := scanStudentRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}

func (r *StudentRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*models.Student, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		student, err := scanStudentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}

	return students, nil
}

// GetByID retrieves a student by ID without tenant scoping. Only used for
// principal resolution where the ID comes from a verified token.
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetByParentEmail retrieves the first student registered under a parent email
func (r *StudentRepository) GetByParentEmail(ctx context.Context, email string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE parent_email = $1 ORDER BY created_at ASC LIMIT 1`
	return r.queryOne(ctx, query, email)
}

// ListByParentEmail retrieves all students sharing a parent email
func (r *StudentRepository) ListByParentEmail(ctx context.Context, email string) ([]*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE parent_email = $1 ORDER BY created_at ASC`
	return r.queryMany(ctx, query, email)
}

// ListByInstitute retrieves all students belonging to an institute
func (r *StudentRepository) ListByInstitute(ctx context.Context, instituteID uuid.UUID) ([]*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE institute_id = $1 ORDER BY created_at DESC`
	return r.queryMany(ctx, query, instituteID)
}

// GetByIDForInstitute retrieves a student only when it belongs to the given
// institute. A student under a different institute is indistinguishable from
// an absent one.
func (r *StudentRepository) GetByIDForInstitute(ctx context.Context, id, instituteID uuid.UUID) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 AND institute_id = $2`
	return r.queryOne(ctx, query, id, instituteID)
}

// Update updates a student's mutable fields, scoped to its institute
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	query := `
		UPDATE students
		SET student_name = $3,
		    parent_name = $4,
		    parent_phone = $5,
		    grade = $6,
		    roll_number = $7,
		    address = $8,
		    updated_at = $9
		WHERE id = $1 AND institute_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		student.ID,
		student.InstituteID,
		student.StudentName,
		student.ParentName,
		student.ParentPhone,
		student.Grade,
		student.RollNumber,
		student.Address,
		time.Now(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to update student: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("student updated", zap.String("id", student.ID.String()))
	return nil
}
