package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "bad payload", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: bad payload", err.Error())
}

func TestAppError_WrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapError(cause, ErrCodeUnavailable, "redis unreachable", http.StatusServiceUnavailable)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAppError_WithContext(t *testing.T) {
	err := NewInvalidInputError("bad payload").
		WithContext("field", "email").
		WithContext("attempt", 2)

	assert.Equal(t, "email", err.Context["field"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("stream"), ErrCodeNotFound, http.StatusNotFound},
		{NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{NewForbiddenError("x"), ErrCodeForbidden, http.StatusForbidden},
		{NewConflictError("x"), ErrCodeConflict, http.StatusConflict},
		{NewThrottledError("x"), ErrCodeThrottled, http.StatusTooManyRequests},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewInternalError("x"), ErrCodeInternal, http.StatusInternalServerError},
		{NewServiceUnavailableError("x"), ErrCodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
	}
}

func TestNewNotFoundError_NamesResource(t *testing.T) {
	err := NewNotFoundError("constellation")
	assert.Equal(t, "constellation not found", err.Message)
}

func TestGetAppError(t *testing.T) {
	appErr := NewThrottledError("slow down")

	require.Same(t, appErr, GetAppError(appErr))

	wrapped := fmt.Errorf("handler: %w", appErr)
	assert.Same(t, appErr, GetAppError(wrapped))

	assert.Nil(t, GetAppError(stderrors.New("plain")))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewInternalError("x")))
	assert.False(t, IsAppError(stderrors.New("plain")))
}
