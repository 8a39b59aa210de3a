// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/admitly/internal/platform/ctxutil"
	"github.com/taibuivan/admitly/internal/platform/middleware"
	"github.com/taibuivan/admitly/internal/platform/sec"
)

type stubVerifier struct {
	claims *sec.AuthClaims
	err    error
	seen   string
}

func (v *stubVerifier) VerifyAccess(tokenString string) (*sec.AuthClaims, error) {
	v.seen = tokenString
	return v.claims, v.err
}

func claimsFor(userID, role string) *sec.AuthClaims {
	return &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Role:             role,
	}
}

// echoUser writes the authenticated subject, or "anonymous".
var echoUser = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	userID := ctxutil.GetUserID(request.Context())
	if userID == "" {
		userID = "anonymous"
	}
	_, _ = writer.Write([]byte(userID))
})

/*
TestAuthenticate covers anonymous, valid, malformed and rejected tokens.
*/
func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
		wantBody   string
	}{
		{"anonymous", "", &stubVerifier{}, http.StatusOK, "anonymous"},
		{"valid", "Bearer good", &stubVerifier{claims: claimsFor("user-1", "learner")}, http.StatusOK, "user-1"},
		{"lowercase_scheme", "bearer good", &stubVerifier{claims: claimsFor("user-1", "learner")}, http.StatusOK, "user-1"},
		{"wrong_scheme", "Basic abc", &stubVerifier{}, http.StatusUnauthorized, ""},
		{"rejected", "Bearer bad", &stubVerifier{err: sec.ErrTokenExpired}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			middleware.Authenticate(tt.verifier)(echoUser).ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, recorder.Body.String())
			}
		})
	}
}

/*
TestAuthenticate_ErrorBodyIsGeneric ensures the failure reason is not disclosed.
*/
func TestAuthenticate_ErrorBodyIsGeneric(t *testing.T) {
	for _, cause := range []error{sec.ErrTokenExpired, sec.ErrTokenMalformed, sec.ErrTokenSignature} {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Authorization", "Bearer token")
		recorder := httptest.NewRecorder()

		middleware.Authenticate(&stubVerifier{err: cause})(echoUser).ServeHTTP(recorder, request)

		assert.JSONEq(t, `{"error":"Invalid or expired token","code":"UNAUTHORIZED"}`, recorder.Body.String())
	}
}

func TestAuthenticateOptional_UnusableTokenIsAnonymous(t *testing.T) {
	for _, header := range []string{"Basic abc", "Bearer expired"} {
		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set("Authorization", header)
		recorder := httptest.NewRecorder()

		middleware.AuthenticateOptional(&stubVerifier{err: sec.ErrTokenExpired})(echoUser).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "anonymous", recorder.Body.String())
	}

	request := httptest.NewRequest(http.MethodPost, "/", nil)
	request.Header.Set("Authorization", "Bearer good")
	recorder := httptest.NewRecorder()
	middleware.AuthenticateOptional(&stubVerifier{claims: claimsFor("user-9", "learner")})(echoUser).ServeHTTP(recorder, request)
	assert.Equal(t, "user-9", recorder.Body.String())
}

/*
TestRequireAuth and TestRequireRole guard protected routes.
*/
func TestRequireAuth(t *testing.T) {
	recorder := httptest.NewRecorder()
	middleware.RequireAuth(echoUser).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claimsFor("user-1", "learner")))
	recorder = httptest.NewRecorder()
	middleware.RequireAuth(echoUser).ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		claims     *sec.AuthClaims
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"learner", claimsFor("user-1", "learner"), http.StatusForbidden},
		{"admin", claimsFor("user-1", "admin"), http.StatusOK},
		{"superadmin", claimsFor("user-1", "superadmin"), http.StatusOK},
		{"unknown_role", claimsFor("user-1", "root"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				request = request.WithContext(ctxutil.WithAuthUser(request.Context(), tt.claims))
			}
			recorder := httptest.NewRecorder()

			middleware.RequireRole(sec.RoleAdmin)(echoUser).ServeHTTP(recorder, request)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

type corsConfig struct {
	development bool
}

func (c corsConfig) IsDevelopment() bool      { return c.development }
func (c corsConfig) AllowedOrigins() []string { return []string{"https://app.admitly.io"} }

/*
TestCORS echoes allow-listed origins only outside development.
*/
func TestCORS(t *testing.T) {
	handler := middleware.CORS(corsConfig{})(echoUser)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Origin", "https://app.admitly.io")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, "https://app.admitly.io", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Origin", "https://evil.example")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))

	request = httptest.NewRequest(http.MethodOptions, "/", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	recorder = httptest.NewRecorder()
	middleware.CORS(corsConfig{development: true})(echoUser).ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

/*
TestRateLimit rejects requests past the burst for one IP.
*/
func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := middleware.RateLimit(ctx, 0.001, 2)(echoUser)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = "203.0.113.7:5000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		statuses = append(statuses, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "198.51.100.1:5000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestPanicRecovery turns a panic into a 500 JSON error.
*/
func TestPanicRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	})

	recorder := httptest.NewRecorder()
	middleware.PanicRecovery(nil)(panicking).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INTERNAL_ERROR")
}

/*
TestRequestID propagates a client-supplied ID and generates one otherwise.
*/
func TestRequestID(t *testing.T) {
	var seen string
	capture := http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	})

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "client-id")
	recorder := httptest.NewRecorder()
	middleware.RequestID()(capture).ServeHTTP(recorder, request)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", recorder.Header().Get("X-Request-ID"))

	recorder = httptest.NewRecorder()
	middleware.RequestID()(capture).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)

	for _, hostile := range []string{strings.Repeat("a", 129), "line\nbreak", "caf\u00e9"} {
		request = httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("X-Request-ID", hostile)
		middleware.RequestID()(capture).ServeHTTP(httptest.NewRecorder(), request)
		assert.Len(t, seen, 36, "hostile id %q must be replaced", hostile)
	}
}
