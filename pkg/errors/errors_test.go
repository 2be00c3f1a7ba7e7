package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *errors.AppError
		status int
		target error
	}{
		{"not found", errors.NotFound("medication"), http.StatusNotFound, errors.ErrNotFound},
		{"unauthorized", errors.Unauthorized("bad key"), http.StatusForbidden, errors.ErrUnauthorized},
		{"bad request", errors.BadRequest("bad"), http.StatusBadRequest, errors.ErrBadRequest},
		{"conflict", errors.Conflict("occupied"), http.StatusConflict, errors.ErrConflict},
		{"validation", errors.Validation(map[string]string{"name": "required"}), http.StatusBadRequest, errors.ErrValidation},
		{"internal", errors.Internal(stderrors.New("connection reset")), http.StatusInternalServerError, errors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, errors.Is(tt.err, tt.target))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "medication not found: resource not found", errors.NotFound("medication").Error())
}

func TestInternal_HidesCauseFromMessage(t *testing.T) {
	err := errors.Internal(stderrors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", err.Message)
	assert.Contains(t, err.Error(), "password authentication failed")
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("insert box 2: %w", errors.Conflict("box occupied"))

	var appErr *errors.AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.True(t, errors.Is(wrapped, errors.ErrConflict))
}
