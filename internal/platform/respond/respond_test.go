// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/ctxutil"
	"github.com/taibuivan/admitly/internal/platform/respond"
)

func TestOK_WrapsData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.OK(recorder, map[string]string{"id": "42"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":{"id":"42"}}`, recorder.Body.String())
}

func TestMessage(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.Message(recorder, "done")
	assert.JSONEq(t, `{"data":{"message":"done"}}`, recorder.Body.String())
}

func TestError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantLogged bool
	}{
		{
			name:       "wrapped_app_error",
			err:        fmt.Errorf("service_failed: %w", apperr.Conflict("Email is already registered")),
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"Email is already registered","code":"CONFLICT"}`,
		},
		{
			name:       "plain_error_is_hidden",
			err:        errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"An unexpected error occurred","code":"INTERNAL_ERROR"}`,
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			ctx := ctxutil.WithLogger(context.Background(), logger)
			request := httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil).WithContext(ctx)
			recorder := httptest.NewRecorder()

			respond.Error(recorder, request, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.JSONEq(t, tt.wantBody, recorder.Body.String())
			if tt.wantLogged {
				assert.Contains(t, logs.String(), "connection refused")
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}
