package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorIs(t *testing.T) {
	t.Run("matches on type and message", func(t *testing.T) {
		err := NewDomainError(ErrorTypeNotFound, "student not found", nil)
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})

	t.Run("different message does not match", func(t *testing.T) {
		err := NewDomainError(ErrorTypeNotFound, "institute not found", nil)
		assert.NotErrorIs(t, err, ErrStudentNotFound)
	})

	t.Run("non-domain target does not match", func(t *testing.T) {
		assert.NotErrorIs(t, ErrStudentNotFound, errors.New("student not found"))
	})

	t.Run("wrapped domain error still matches", func(t *testing.T) {
		wrapped := fmt.Errorf("handler: %w", ErrTokenReuse)
		assert.ErrorIs(t, wrapped, ErrTokenReuse)
	})
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapInternal("failed to query", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to query")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithDetail(t *testing.T) {
	t.Run("accumulates details across the chain", func(t *testing.T) {
		err := NewDomainError(ErrorTypeValidation, "invalid input", nil).
			WithDetail("field", "email").
			WithDetail("reason", "malformed")

		details := GetErrorDetails(err)
		assert.Equal(t, "email", details["field"])
		assert.Equal(t, "malformed", details["reason"])
	})

	t.Run("sentinel is never mutated", func(t *testing.T) {
		a := ErrInvalidInput.WithDetail("date_of_birth", "must be YYYY-MM-DD")
		b := ErrInvalidInput.WithDetail("file", "empty or unreadable CSV")

		assert.Empty(t, ErrInvalidInput.Details)
		assert.Equal(t, map[string]interface{}{"date_of_birth": "must be YYYY-MM-DD"}, a.Details)
		assert.Equal(t, map[string]interface{}{"file": "empty or unreadable CSV"}, b.Details)
	})

	t.Run("detailed copy still matches the sentinel", func(t *testing.T) {
		err := ErrDuplicateRoll.WithDetail("roll_number", "A-101")
		assert.ErrorIs(t, err, ErrDuplicateRoll)
	})

	t.Run("concurrent calls on one sentinel are safe", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_ = ErrInvalidInput.WithDetail("field", n)
			}(i)
		}
		wg.Wait()
		assert.Empty(t, ErrInvalidInput.Details)
	})
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{"not found", ErrKYCRequestNotFound, IsNotFoundError},
		{"validation", ErrInvalidInstituteType, IsValidationError},
		{"unauthorized", ErrInvalidCredentials, IsUnauthorizedError},
		{"forbidden", NewDomainError(ErrorTypeForbidden, "access forbidden", nil), IsForbiddenError},
		{"conflict", ErrDuplicateRoll, IsConflictError},
		{"internal", ErrInternal, IsInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.checker(tt.err))
		})
	}

	t.Run("plain errors match no category", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, IsNotFoundError(err))
		assert.False(t, IsInternalError(err))
		assert.Equal(t, ErrorType(""), GetErrorType(err))
	})
}
