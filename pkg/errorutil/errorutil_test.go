package errorutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFound("ticket", map[string]any{"id": "abc"}))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrStateConflict))
	assert.True(t, IsDomainError(err))
}

func TestNewStateConflictDetails(t *testing.T) {
	err := NewStateConflict("RESOLVED", "ASSIGNED", "terminal")

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, CodeStateConflict, de.Code)
	assert.Equal(t, "RESOLVED", de.Details["current_state"])
	assert.Equal(t, "ASSIGNED", de.Details["attempted_state"])
}

func TestPersistenceFailureHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPersistenceFailure(cause, "req-1")

	de := ToDomainError(err)
	assert.Equal(t, "service unavailable", de.Message)
	assert.Equal(t, "req-1", de.Details["request_id"])
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrPersistenceFailure)

	assert.Empty(t, ToDomainError(NewPersistenceFailure(cause, "")).Details)
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error: boom", de.Error())
	assert.False(t, IsDomainError(errors.New("plain")))
}

func TestNotFoundDefaultsDetails(t *testing.T) {
	de := ToDomainError(NewNotFound("ticket", nil))
	assert.Equal(t, "ticket not found", de.Message)
	assert.NotNil(t, de.Details)
}
