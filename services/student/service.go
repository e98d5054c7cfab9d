// Package student implements tenant-scoped student CRUD and the parent-facing
// listing. Every institute-facing operation is keyed by the institute id from
// the authenticated principal, never by client-supplied tenant fields.
package student

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/auth"
	"go.uber.org/zap"
)

// dateLayout is the accepted date-of-birth format
const dateLayout = "2006-01-02"

// RegisterInput carries the validated fields of a student registration
type RegisterInput struct {
	StudentName string
	ParentName  string
	ParentEmail string
	ParentPhone string
	Password    string
	DateOfBirth string
	Grade       string
	RollNumber  string
	Address     string
}

// UpdateInput carries the mutable fields of a student update
type UpdateInput struct {
	StudentName string
	ParentName  string
	ParentPhone string
	Grade       string
	RollNumber  string
	Address     string
}

// BulkResult reports the outcome of a bulk registration
type BulkResult struct {
	Created int               `json:"created"`
	Errors  map[string]string `json:"errors,omitempty"` // row number -> reason
}

// Service implements student registration and lookup
type Service struct {
	students repositories.StudentRepository
	tx       repositories.TransactionManager
	hasher   *auth.Hasher
	logger   *zap.Logger
}

// NewService creates a new student service
func NewService(
	students repositories.StudentRepository,
	tx repositories.TransactionManager,
	hasher *auth.Hasher,
	logger *zap.Logger,
) *Service {
	return &Service{
		students: students,
		tx:       tx,
		hasher:   hasher,
		logger:   logger,
	}
}

func (s *Service) buildStudent(institute *models.Institute, input RegisterInput) (*models.Student, error) {
	dob, err := time.Parse(dateLayout, input.DateOfBirth)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("date_of_birth", "must be YYYY-MM-DD")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	return models.NewStudent(
		institute.ID,
		institute.Name,
		input.StudentName,
		input.ParentName,
		input.ParentEmail,
		input.ParentPhone,
		hash,
		dob,
		input.Grade,
		input.RollNumber,
		input.Address,
	), nil
}

// Register creates a single student under the authenticated institute
func (s *Service) Register(ctx context.Context, institute *models.Institute, input RegisterInput) (*models.Student, error) {
	student, err := s.buildStudent(institute, input)
	if err != nil {
		return nil, err
	}

	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateRoll.WithDetail("roll_number", input.RollNumber)
		}
		return nil, services.WrapInternal("failed to create student", err)
	}

	s.logger.Info("student registered",
		zap.String("student_id", student.ID.String()),
		zap.String("institute_id", institute.ID.String()))
	return student, nil
}

// bulkHeader is the required CSV column order for bulk registration
var bulkHeader = []string{
	"student_name", "parent_name", "parent_email", "parent_phone",
	"password", "date_of_birth", "grade", "roll_number", "address",
}

// BulkRegister parses a CSV upload and inserts all valid rows in one
// transaction. Row-level validation failures are collected per row; any
// insert failure rolls the whole batch back.
func (s *Service) BulkRegister(ctx context.Context, institute *models.Institute, r io.Reader) (*BulkResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("file", "empty or unreadable CSV")
	}
	if len(header) != len(bulkHeader) {
		return nil, services.ErrInvalidInput.WithDetail("file",
			fmt.Sprintf("expected columns: %s", strings.Join(bulkHeader, ",")))
	}
	for i, col := range bulkHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return nil, services.ErrInvalidInput.WithDetail("file",
				fmt.Sprintf("expected column %d to be %q", i+1, col))
		}
	}

	result := &BulkResult{Errors: make(map[string]string)}
	var students []*models.Student
	seenRolls := make(map[string]bool)

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors[fmt.Sprintf("row %d", rowNum)] = "malformed CSV row"
			continue
		}

		input := RegisterInput{
			StudentName: strings.TrimSpace(record[0]),
			ParentName:  strings.TrimSpace(record[1]),
			ParentEmail: strings.TrimSpace(record[2]),
			ParentPhone: strings.TrimSpace(record[3]),
			Password:    record[4],
			DateOfBirth: strings.TrimSpace(record[5]),
			Grade:       strings.TrimSpace(record[6]),
			RollNumber:  strings.TrimSpace(record[7]),
			Address:     strings.TrimSpace(record[8]),
		}
		if input.StudentName == "" || input.ParentEmail == "" || input.RollNumber == "" || input.Password == "" {
			result.Errors[fmt.Sprintf("row %d", rowNum)] = "student_name, parent_email, roll_number, and password are required"
			continue
		}
		if seenRolls[input.RollNumber] {
			result.Errors[fmt.Sprintf("row %d", rowNum)] = "duplicate roll_number within file"
			continue
		}

		student, err := s.buildStudent(institute, input)
		if err != nil {
			result.Errors[fmt.Sprintf("row %d", rowNum)] = err.Error()
			continue
		}
		seenRolls[input.RollNumber] = true
		students = append(students, student)
	}

	if len(students) > 0 {
		err := s.tx.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
			return s.students.CreateBatch(txCtx, students)
		})
		if err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return nil, services.ErrDuplicateRoll
			}
			return nil, services.WrapInternal("failed to insert student batch", err)
		}
	}

	result.Created = len(students)
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	s.logger.Info("bulk registration completed",
		zap.String("institute_id", institute.ID.String()),
		zap.Int("created", result.Created),
		zap.Int("rejected", len(result.Errors)))
	return result, nil
}

// ListForInstitute returns all students belonging to the institute
func (s *Service) ListForInstitute(ctx context.Context, instituteID uuid.UUID) ([]*models.Student, error) {
	students, err := s.students.ListByInstitute(ctx, instituteID)
	if err != nil {
		return nil, services.WrapInternal("failed to list students", err)
	}
	return students, nil
}

// GetForInstitute returns a student only when it belongs to the institute.
// Out-of-tenant ids are not found, never revealed.
func (s *Service) GetForInstitute(ctx context.Context, id, instituteID uuid.UUID) (*models.Student, error) {
	student, err := s.students.GetByIDForInstitute(ctx, id, instituteID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrStudentNotFound
		}
		return nil, services.WrapInternal("failed to get student", err)
	}
	return student, nil
}

// UpdateForInstitute updates a student's mutable fields within the tenant
func (s *Service) UpdateForInstitute(ctx context.Context, id, instituteID uuid.UUID, input UpdateInput) (*models.Student, error) {
	student, err := s.GetForInstitute(ctx, id, instituteID)
	if err != nil {
		return nil, err
	}

	if input.StudentName != "" {
		student.StudentName = input.StudentName
	}
	if input.ParentName != "" {
		student.ParentName = input.ParentName
	}
	if input.ParentPhone != "" {
		student.ParentPhone = input.ParentPhone
	}
	if input.Grade != "" {
		student.Grade = input.Grade
	}
	if input.RollNumber != "" {
		student.RollNumber = input.RollNumber
	}
	if input.Address != "" {
		student.Address = input.Address
	}

	if err := s.students.Update(ctx, student); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateRoll.WithDetail("roll_number", input.RollNumber)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrStudentNotFound
		}
		return nil, services.WrapInternal("failed to update student", err)
	}

	return student, nil
}

// ListForParent returns all students sharing the parent email
func (s *Service) ListForParent(ctx context.Context, parentEmail string) ([]*models.Student, error) {
	students, err := s.students.ListByParentEmail(ctx, parentEmail)
	if err != nil {
		return nil, services.WrapInternal("failed to list students", err)
	}
	return students, nil
}
