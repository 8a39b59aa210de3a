// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/constants"
	"github.com/taibuivan/admitly/internal/platform/middleware"
	requestutil "github.com/taibuivan/admitly/internal/platform/request"
	"github.com/taibuivan/admitly/internal/platform/respond"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages the session entry points (registration, login, refresh,
// logout, password change) and the password recovery callbacks.
type Handler struct {
	authService     *Service
	resetService    *ResetService
	verifier        middleware.TokenVerifier
	insecureCookies bool
}

// NewHandler constructs a new [Handler].
//
// insecureCookies drops the Secure flag from the refresh cookie and should
// only be set for local development over plain HTTP.
func NewHandler(service *Service, resetService *ResetService, verifier middleware.TokenVerifier, insecureCookies bool) *Handler {
	return &Handler{
		authService:     service,
		resetService:    resetService,
		verifier:        verifier,
		insecureCookies: insecureCookies,
	}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register        : Creates a learner account and signs it in.
//   - POST /login           : Exchanges credentials for a session.
//   - POST /refresh         : Rotates the session using the refresh cookie.
//   - POST /logout          : Ends every session of the caller. Always 204.
//   - POST /forgot-password : Emails a reset link when the account exists.
//   - POST /reset-password  : Consumes a reset link.
//   - POST /change-password : Replaces the password of the signed-in user.
//   - POST /users/{userID}/revoke-sessions : Superadmin-only forced sign-out.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Identity is optional: an expired access token must not block sign-out.
	router.With(middleware.AuthenticateOptional(handler.verifier)).Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(handler.verifier))
		r.With(middleware.RequireAuth).Post("/change-password", handler.changePassword)
		r.With(middleware.RequireRole(sec.RoleSuperAdmin)).Post("/users/{userID}/revoke-sessions", handler.revokeSessions)
	})

	return router
}

// # Request & Response Payloads

type registerRequest struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Name           string   `json:"name"`
	Username       string   `json:"username"`
	OrganizationID string   `json:"organizationId"`
	UniversityID   string   `json:"universityId"`
	CourseIDs      []string `json:"courseIds"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// sessionResponse is the body of every endpoint that issues a session.
// The refresh token travels only in the cookie.
type sessionResponse struct {
	AccessToken string         `json:"accessToken"`
	ExpiresIn   string         `json:"expiresIn"`
	User        *PublicProfile `json:"user"`
}

/*
Register handles the creation of a new learner account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest

Response:
  - 201: sessionResponse + refresh cookie
  - 400: Validation failure or invalid course linkage
  - 404: Organization or University not found
  - 409: Email or username already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Email(FieldEmail, strings.TrimSpace(input.Email)).
		Required(FieldUsername, input.Username).
		Username(FieldUsername, FoldIdentity(input.Username)).
		Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, MaxNameLength)
	passwordRules(validator, FieldPassword, input.Password)

	if input.OrganizationID != "" {
		validator.UUID(FieldOrganizationID, input.OrganizationID)
	}
	if input.UniversityID != "" {
		validator.UUID(FieldUniversityID, input.UniversityID)
	}
	validator.Custom(FieldCourseIDs, len(input.CourseIDs) > MaxCourseSelections, "Too many courses selected")
	for _, courseID := range input.CourseIDs {
		validator.UUID(FieldCourseIDs, courseID)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:          input.Email,
		Password:       input.Password,
		Name:           input.Name,
		Username:       input.Username,
		OrganizationID: input.OrganizationID,
		UniversityID:   input.UniversityID,
		CourseIDs:      input.CourseIDs,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)
	respond.Created(writer, toSessionResponse(session))
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: sessionResponse + refresh cookie
  - 401: Invalid credentials or deactivated account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)
	respond.OK(writer, toSessionResponse(session))
}

/*
Refresh rotates the session using the refresh cookie.

POST /api/v1/auth/refresh

Response:
  - 200: sessionResponse + rotated refresh cookie
  - 401: Missing, invalid, expired or already-rotated refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := requestutil.RefreshCookie(request)
	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized(MsgInvalidRefreshToken))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), refreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)
	respond.OK(writer, toSessionResponse(session))
}

/*
Logout terminates every session of the caller.

POST /api/v1/auth/logout

The user is identified by the refresh cookie, or by the access token when
the cookie is missing. The cookie is always cleared.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	userID := ""
	if claims := requestutil.Claims(request); claims != nil {
		userID = claims.UserID()
	}

	handler.authService.Logout(request.Context(), requestutil.RefreshCookie(request), userID)

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

The body is identical whether or not the email belongs to an account.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Fixed confirmation message
  - 400: Invalid email format
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Email(FieldEmail, strings.TrimSpace(input.Email))

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, handler.resetService.ForgotPassword(request.Context(), input.Email))
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Email, NewPassword)

Response:
  - 200: Fixed success message
  - 400: Invalid or expired reset token, or weak password
  - 409: Account has been deactivated
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Email(FieldEmail, strings.TrimSpace(input.Email))
	passwordRules(validator, FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	message, err := handler.resetService.ResetPassword(request.Context(), input.Token, input.Email, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, message)
}

/*
ChangePassword updates the authenticated user's password and rotates the session.

POST /api/v1/auth/change-password

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: sessionResponse + new refresh cookie
  - 400: Weak password or validation failure
  - 401: Not authenticated or wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword)
	passwordRules(validator, FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)
	respond.OK(writer, toSessionResponse(session))
}

/*
RevokeSessions signs a user out of every device.

POST /api/v1/auth/users/{userID}/revoke-sessions

Response:
  - 204: No Content
  - 403: Caller is not a superadmin
  - 404: Account not found
*/
func (handler *Handler) revokeSessions(writer http.ResponseWriter, request *http.Request) {
	targetID := chi.URLParam(request, "userID")

	validator := &validate.Validator{}
	if err := validator.UUID("userID", targetID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RevokeSessions(request.Context(), targetID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Helpers

// passwordRules applies the shared password policy to field.
func passwordRules(validator *validate.Validator, field, password string) {
	validator.Required(field, password).
		MinLen(field, password, constants.MinPasswordLength).
		MaxBytes(field, password, sec.MaxPasswordBytes)
}

func toSessionResponse(session *Session) sessionResponse {
	return sessionResponse{
		AccessToken: session.AccessToken,
		ExpiresIn:   session.ExpiresIn,
		User:        session.User,
	}
}

// setRefreshCookie writes the refresh token cookie.
//
// Production cookies are Secure with SameSite=None so a separately hosted
// frontend can send them. Development over plain HTTP falls back to Lax.
func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, session *Session) {
	cookie := handler.baseCookie()
	cookie.Value = session.RefreshToken
	cookie.MaxAge = session.RefreshMaxAge
	http.SetCookie(writer, cookie)
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	cookie := handler.baseCookie()
	cookie.MaxAge = -1
	http.SetCookie(writer, cookie)
}

func (handler *Handler) baseCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Path:     constants.RefreshTokenCookiePath,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	if handler.insecureCookies {
		cookie.Secure = false
		cookie.SameSite = http.SameSiteLaxMode
	}
	return cookie
}
