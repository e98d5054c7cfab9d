package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationForm struct {
	Name  string `validate:"required,min=2,max=100"`
	Email string `validate:"required,email"`
	Type  string `validate:"required,oneof=school college"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		err := ValidateStruct(registrationForm{
			Name:  "Springfield High",
			Email: "office@springfield.edu",
			Type:  "school",
		})
		assert.NoError(t, err)
	})

	t.Run("collects per-field messages", func(t *testing.T) {
		err := ValidateStruct(registrationForm{
			Name:  "A",
			Email: "not-an-email",
			Type:  "bootcamp",
		})
		require.Error(t, err)
		require.True(t, IsValidationError(err))
		assert.Equal(t, "Validation failed", err.Error())

		fields := GetValidationFields(err)
		assert.Equal(t, "Name must be at least 2", fields["Name"])
		assert.Equal(t, "Email must be a valid email", fields["Email"])
		assert.Equal(t, "Type must be one of: school college", fields["Type"])
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(registrationForm{Email: "office@springfield.edu", Type: "school"})
		require.Error(t, err)
		assert.Equal(t, "Name is required", GetValidationFields(err)["Name"])
	})
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("plain error")))
	assert.Nil(t, GetValidationFields(errors.New("plain error")))

	wrapped := fmt.Errorf("request failed: %w", &ValidationError{
		Message: "Validation failed",
		Fields:  map[string]string{"Name": "Name is required"},
	})
	assert.True(t, IsValidationError(wrapped))
	assert.Equal(t, "Name is required", GetValidationFields(wrapped)["Name"])
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID(uuid.New().String()))
	assert.Error(t, ValidateUUID("not-a-uuid"))
	assert.Error(t, ValidateUUID(""))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("homer@example.com"))
	assert.NoError(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.Error(t, ValidateEmail("homer@"))
	assert.Error(t, ValidateEmail("example.com"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("value", "name"))

	err := ValidateRequired("", "name")
	require.Error(t, err)
	assert.Equal(t, "name is required", err.Error())
}
