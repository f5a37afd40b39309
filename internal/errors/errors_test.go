package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/assessment/internal/errors"
)

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *errors.AppError
		code   string
		status int
	}{
		{"not found", errors.NewNotFoundError("session", "u1"), errors.ErrCodeNotFound, 404},
		{"validation", errors.NewValidationError("elapsed", "must be >= 0"), errors.ErrCodeValidation, 400},
		{"credentials", errors.NewInvalidCredentialsError(), errors.ErrCodeInvalidCredentials, 401},
		{"unauthorized", errors.NewUnauthorizedError("bad key"), errors.ErrCodeUnauthorized, 401},
		{"forbidden", errors.NewForbiddenError("not yours"), errors.ErrCodeForbidden, 403},
		{"store", errors.NewStoreUnavailableError(fmt.Errorf("disk")), errors.ErrCodeStoreUnavailable, 503},
		{"internal", errors.NewInternalError(fmt.Errorf("boom")), errors.ErrCodeInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}

func TestAs_WrappedAppError(t *testing.T) {
	inner := errors.NewNotFoundError("participant", "u9")
	wrapped := fmt.Errorf("lookup: %w", inner)

	got := errors.As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, errors.ErrCodeNotFound, got.Code)
	assert.True(t, errors.HasCode(wrapped, errors.ErrCodeNotFound))
}

func TestAs_UnknownBecomesInternal(t *testing.T) {
	cause := stderrors.New("socket closed")
	got := errors.As(cause)
	assert.Equal(t, errors.ErrCodeInternal, got.Code)
	assert.ErrorIs(t, got, cause)
	assert.False(t, errors.HasCode(cause, errors.ErrCodeInternal))
}

func TestStoreUnavailable_Unwraps(t *testing.T) {
	cause := stderrors.New("database is locked")
	err := errors.NewStoreUnavailableError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "database is locked")
}
