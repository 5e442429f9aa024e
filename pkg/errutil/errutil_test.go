package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHttpError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"bad request", BadRequestError(errors.New("title is required")), http.StatusBadRequest, "title is required"},
		{"unauthorized", UnauthorizedError(errors.New("unauthorized")), http.StatusUnauthorized, "unauthorized"},
		{"not found wrapped", fmt.Errorf("mark read: %w", NotFoundError(errors.New("notification not found"))), http.StatusNotFound, "notification not found"},
		{"plain error hides internals", errors.New("dial tcp 10.0.0.1:3306: connection refused"), http.StatusInternalServerError, "internal server error"},
		{"internal error hides internals", InternalServerError(errors.New("secret")), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := ParseHttpError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundError(errors.New("x"))))
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", NotFoundError(nil))))
	assert.False(t, IsNotFound(BadRequestError(errors.New("x"))))
	assert.False(t, IsNotFound(errors.New("x")))
}
