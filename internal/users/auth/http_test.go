// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/admitly/internal/platform/constants"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/internal/users/auth"
)

type sessionEnvelope struct {
	Data struct {
		AccessToken string             `json:"accessToken"`
		ExpiresIn   string             `json:"expiresIn"`
		User        auth.PublicProfile `json:"user"`
	} `json:"data"`
}

func newTestRouter(f *fixture, insecure bool) http.Handler {
	return auth.NewHandler(f.service, f.reset, f.issuer, insecure).Routes()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, prepare ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for _, fn := range prepare {
		fn(request)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func withCookie(value string) func(*http.Request) {
	return func(request *http.Request) {
		request.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookieName, Value: value})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(request *http.Request) {
		request.Header.Set("Authorization", "Bearer "+token)
	}
}

func refreshCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.RefreshTokenCookieName {
			return cookie
		}
	}
	t.Fatalf("no %s cookie in response", constants.RefreshTokenCookieName)
	return nil
}

const registerBody = `{"email":"a@x.com","password":"pw123456","name":"Ada","username":"ada"}`

func TestHandler_RegisterSetsCookieAndBody(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)

	recorder := doRequest(t, router, http.MethodPost, "/register", registerBody)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var envelope sessionEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "15m", envelope.Data.ExpiresIn)
	assert.Equal(t, "a@x.com", envelope.Data.User.Email)
	assert.NotContains(t, recorder.Body.String(), "refreshToken")
	assert.NotContains(t, recorder.Body.String(), "passwordHash")

	cookie := refreshCookie(t, recorder)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, int64(1), f.refreshVersion(t, cookie.Value))
}

func TestHandler_InsecureCookiesForDevelopment(t *testing.T) {
	f := newFixture(t)
	recorder := doRequest(t, newTestRouter(f, true), http.MethodPost, "/register", registerBody)
	require.Equal(t, http.StatusCreated, recorder.Code)

	cookie := refreshCookie(t, recorder)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestHandler_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)

	tests := []struct {
		name string
		body string
	}{
		{"invalid_json", `{"email":`},
		{"bad_email", `{"email":"nope","password":"pw123456","name":"Ada","username":"ada"}`},
		{"short_password", `{"email":"a@x.com","password":"short","name":"Ada","username":"ada"}`},
		{"long_password", `{"email":"a@x.com","password":"` + strings.Repeat("p", sec.MaxPasswordBytes+1) + `","name":"Ada","username":"ada"}`},
		{"bad_username", `{"email":"a@x.com","password":"pw123456","name":"Ada","username":"a b"}`},
		{"missing_name", `{"email":"a@x.com","password":"pw123456","username":"ada"}`},
		{"bad_course_id", `{"email":"a@x.com","password":"pw123456","name":"Ada","username":"ada","courseIds":["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(t, router, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Contains(t, recorder.Body.String(), `"code":"VALIDATION_ERROR"`)
		})
	}
}

func TestHandler_LoginRefreshLogout(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	require.Equal(t, http.StatusCreated, doRequest(t, router, http.MethodPost, "/register", registerBody).Code)

	wrong := doRequest(t, router, http.MethodPost, "/login", `{"email":"a@x.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password","code":"UNAUTHORIZED"}`, wrong.Body.String())

	login := doRequest(t, router, http.MethodPost, "/login", `{"email":"A@X.COM","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, login.Code)
	loginCookie := refreshCookie(t, login)

	refreshed := doRequest(t, router, http.MethodPost, "/refresh", "", withCookie(loginCookie.Value))
	require.Equal(t, http.StatusOK, refreshed.Code)
	refreshedCookie := refreshCookie(t, refreshed)
	assert.NotEqual(t, loginCookie.Value, refreshedCookie.Value)

	replay := doRequest(t, router, http.MethodPost, "/refresh", "", withCookie(loginCookie.Value))
	assert.Equal(t, http.StatusUnauthorized, replay.Code)

	missing := doRequest(t, router, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	logout := doRequest(t, router, http.MethodPost, "/logout", "", withCookie(refreshedCookie.Value))
	assert.Equal(t, http.StatusNoContent, logout.Code)
	cleared := refreshCookie(t, logout)
	assert.Equal(t, "", cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	afterLogout := doRequest(t, router, http.MethodPost, "/refresh", "", withCookie(refreshedCookie.Value))
	assert.Equal(t, http.StatusUnauthorized, afterLogout.Code)
}

func TestHandler_LogoutAlwaysNoContent(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	session := f.register(t, "a@x.com", "pw123456")
	before := f.users.version(t, session.User.ID)

	// Expired access token and garbage cookie: still 204, nothing to revoke.
	recorder := doRequest(t, router, http.MethodPost, "/logout", "", withBearer("expired.token.value"), withCookie("garbage"))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, before, f.users.version(t, session.User.ID))

	// A valid access token identifies the user when the cookie is unusable.
	recorder = doRequest(t, router, http.MethodPost, "/logout", "", withBearer(session.AccessToken), withCookie("garbage"))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, before+1, f.users.version(t, session.User.ID))
}

func TestHandler_ForgotPasswordBodiesMatch(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	f.register(t, "a@x.com", "pw123456")

	known := doRequest(t, router, http.MethodPost, "/forgot-password", `{"email":"a@x.com"}`)
	unknown := doRequest(t, router, http.MethodPost, "/forgot-password", `{"email":"ghost@x.com"}`)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"data":{"message":"If an account exists for this email, a reset link has been sent."}}`, known.Body.String())
}

func TestHandler_ResetPassword(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	f.register(t, "a@x.com", "pw123456")
	f.reset.ForgotPassword(context.Background(), "a@x.com")
	token := lastResetToken(t, f)

	body := `{"token":"` + token + `","email":"a@x.com","newPassword":"brand-new-pass"}`

	first := doRequest(t, router, http.MethodPost, "/reset-password", body)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"data":{"message":"Password has been reset successfully."}}`, first.Body.String())

	second := doRequest(t, router, http.MethodPost, "/reset-password", body)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired reset token","code":"VALIDATION_ERROR"}`, second.Body.String())
}

func TestHandler_ChangePassword(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	session := f.register(t, "a@x.com", "pw123456")
	body := `{"currentPassword":"pw123456","newPassword":"pw654321"}`

	anonymous := doRequest(t, router, http.MethodPost, "/change-password", body)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	changed := doRequest(t, router, http.MethodPost, "/change-password", body, withBearer(session.AccessToken))
	require.Equal(t, http.StatusOK, changed.Code, changed.Body.String())
	assert.NotEqual(t, session.RefreshToken, refreshCookie(t, changed).Value)

	stale := doRequest(t, router, http.MethodPost, "/refresh", "", withCookie(session.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, stale.Code)
}

func TestHandler_RevokeSessionsRequiresSuperAdmin(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f, false)
	target := f.register(t, "a@x.com", "pw123456")
	path := "/users/" + target.User.ID + "/revoke-sessions"

	learnerToken := target.AccessToken
	forbidden := doRequest(t, router, http.MethodPost, path, "", withBearer(learnerToken))
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	adminToken, err := f.issuer.SignAccess(sec.AccessClaims{UserID: "0190a6f1-0000-7000-8000-0000000000ee", Role: string(sec.RoleSuperAdmin)})
	require.NoError(t, err)

	before := f.users.version(t, target.User.ID)
	revoked := doRequest(t, router, http.MethodPost, path, "", withBearer(adminToken))
	assert.Equal(t, http.StatusNoContent, revoked.Code)
	assert.Equal(t, before+1, f.users.version(t, target.User.ID))

	missing := doRequest(t, router, http.MethodPost, "/users/0190a6f1-0000-7000-8000-0000000000ab/revoke-sessions", "", withBearer(adminToken))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
