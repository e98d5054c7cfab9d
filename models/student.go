package models

import (
	"time"

	"github.com/google/uuid"
)

// Student represents a student record registered by an institute.
// The parent email is the login identity for the parent dashboard; one parent
// email may own several students. InstituteID is the tenant key for every
// query touching student data; InstituteName is a denormalized display field.
type Student struct {
	ID            uuid.UUID `json:"id" db:"id"`
	InstituteID   uuid.UUID `json:"institute_id" db:"institute_id"`
	InstituteName string    `json:"institute_name" db:"institute_name"`
	StudentName   string    `json:"student_name" db:"student_name"`
	ParentName    string    `json:"parent_name" db:"parent_name"`
	ParentEmail   string    `json:"parent_email" db:"parent_email"`
	ParentPhone   string    `json:"parent_phone" db:"parent_phone"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	DateOfBirth   time.Time `json:"date_of_birth" db:"date_of_birth"`
	Grade         string    `json:"grade" db:"grade"`
	RollNumber    string    `json:"roll_number" db:"roll_number"`
	Address       string    `json:"address" db:"address"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Student model
func (Student) TableName() string {
	return "students"
}

// NewStudent creates a new Student instance under the given institute
func NewStudent(instituteID uuid.UUID, instituteName, studentName, parentName, parentEmail, parentPhone, passwordHash string, dob time.Time, grade, rollNumber, address string) *Student {
	now := time.Now()
	return &Student{
		ID:            uuid.New(),
		InstituteID:   instituteID,
		InstituteName: instituteName,
		StudentName:   studentName,
		ParentName:    parentName,
		ParentEmail:   parentEmail,
		ParentPhone:   parentPhone,
		PasswordHash:  passwordHash,
		DateOfBirth:   dob,
		Grade:         grade,
		RollNumber:    rollNumber,
		Address:       address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Age returns the student's age in whole years at the given time
func (s *Student) Age(at time.Time) int {
	years := at.Year() - s.DateOfBirth.Year()
	anniversary := s.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// StudentProfile is the public projection returned to parent and institute
// dashboards. Age is computed, the password hash is never included.
type StudentProfile struct {
	ID            uuid.UUID `json:"id"`
	InstituteID   uuid.UUID `json:"institute_id"`
	InstituteName string    `json:"institute_name"`
	StudentName   string    `json:"student_name"`
	ParentName    string    `json:"parent_name"`
	ParentEmail   string    `json:"parent_email"`
	ParentPhone   string    `json:"parent_phone"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	Age           int       `json:"age"`
	Grade         string    `json:"grade"`
	RollNumber    string    `json:"roll_number"`
	Address       string    `json:"address"`
}

// Profile returns the outward-facing projection of the student
func (s *Student) Profile() *StudentProfile {
	return &StudentProfile{
		ID:            s.ID,
		InstituteID:   s.InstituteID,
		InstituteName: s.InstituteName,
		StudentName:   s.StudentName,
		ParentName:    s.ParentName,
		ParentEmail:   s.ParentEmail,
		ParentPhone:   s.ParentPhone,
		DateOfBirth:   s.DateOfBirth,
		Age:           s.Age(time.Now()),
		Grade:         s.Grade,
		RollNumber:    s.RollNumber,
		Address:       s.Address,
	}
}

// StudentProfiles maps a slice of students to their public projections
func StudentProfiles(students []*Student) []*StudentProfile {
	profiles := make([]*StudentProfile, 0, len(students))
	for _, s := range students {
		profiles = append(profiles, s.Profile())
	}
	return profiles
}
