package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("title", "is required")
	assert.Equal(t, "title: is required", err.Error())

	wrapped := fmt.Errorf("submit idea: %w", err)
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsValidation(ErrNotFound))

	assert.Equal(t, "bad input", (&ValidationError{Message: "bad input"}).Error())
}
