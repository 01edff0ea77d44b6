package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	base := NewForbidden("nope")
	wrapped := fmt.Errorf("redeem: %w", base)

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeForbidden, de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.True(t, HasCode(wrapped, CodeForbidden))
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := NewStorageError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeStorage))
	assert.Equal(t, http.StatusServiceUnavailable, ToDomainError(err).HTTPStatus)
}

func TestValidationErrorDetails(t *testing.T) {
	err := NewValidationError("invalid registration", map[string]any{"email": "required"})
	de := ToDomainError(err)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Equal(t, "required", de.Details["email"])
}
