// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/admitly/internal/platform/apperr"
)

/*
TestConstructors verifies the code and status of every error kind.
*/
func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		code   string
		status int
	}{
		{"not_found", apperr.NotFound("University"), apperr.CodeNotFound, http.StatusNotFound},
		{"unauthorized", apperr.Unauthorized("nope"), apperr.CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("nope"), apperr.CodeForbidden, http.StatusForbidden},
		{"conflict", apperr.Conflict("dup"), apperr.CodeConflict, http.StatusConflict},
		{"validation", apperr.ValidationError("bad"), apperr.CodeValidation, http.StatusBadRequest},
		{"rate_limited", apperr.RateLimited(3), apperr.CodeRateLimited, http.StatusTooManyRequests},
		{"internal", apperr.Internal(errors.New("boom")), apperr.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}

	assert.Equal(t, "University not found", apperr.NotFound("University").Error())
}

/*
TestInternal_HidesCause ensures the client message never carries the cause.
*/
func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: relation users.account does not exist")
	err := apperr.Internal(cause)

	assert.NotContains(t, err.Error(), "relation")
	assert.ErrorIs(t, err, cause)
}

/*
TestHelpers_TraverseWrappedChain checks detection through fmt.Errorf wrapping.
*/
func TestHelpers_TraverseWrappedChain(t *testing.T) {
	wrapped := fmt.Errorf("auth_service_lookup_failed: %w", apperr.NotFound("Account"))

	require.True(t, apperr.IsAppError(wrapped))
	assert.True(t, apperr.IsNotFound(wrapped))
	assert.False(t, apperr.IsConflict(wrapped))
	assert.Equal(t, apperr.CodeNotFound, apperr.As(wrapped).Code)

	assert.Nil(t, apperr.As(errors.New("plain")))
	assert.False(t, apperr.IsNotFound(nil))
}
