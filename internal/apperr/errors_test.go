package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationUnwrap(t *testing.T) {
	err := Validation("currency")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: currency", err.Error())

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "currency", vErr.Field)
}

func TestNotFoundUnwrap(t *testing.T) {
	err := NotFound("EXP-20250828-DEADBEEF")
	assert.ErrorIs(t, err, ErrNotFound)

	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "EXP-20250828-DEADBEEF", nfErr.ID)
}

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("decide step 2: %w", ErrOutOfOrder)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.False(t, errors.Is(err, ErrAlreadyDecided), "kinds stay distinct through wrapping")
}
