// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/admitly/internal/platform/request"
	"github.com/taibuivan/admitly/internal/platform/respond"
	"github.com/taibuivan/admitly/internal/platform/validate"
	"github.com/taibuivan/admitly/internal/users/auth"
)

// Handler implements the HTTP layer for user account management.
//
// # Security
//
// Every route expects an authenticated request. The router mounting this
// handler must apply Authenticate and RequireAuth.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Account Management
	router.Get("/me", handler.getMe)
	router.Patch("/me", handler.updateMe)

	// Session Security
	router.Delete("/me/sessions", handler.signOutEverywhere)

	return router
}

// # User Profile Endpoints

/*
GET /api/v1/account/me.

Description: Retrieves the profile of the authenticated user.

Response:
  - 200: PublicProfile
  - 401: ErrUnauthorized: Authentication required
  - 404: Account no longer exists
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

/*
PATCH /api/v1/account/me.

Description: Applies partial updates to the authenticated user's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: PublicProfile: The updated profile
  - 400: Validation failure
  - 401: ErrUnauthorized: Authentication required
  - 409: Email is already in use
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.Name != nil {
		v.Required(auth.FieldName, *input.Name).MaxLen(auth.FieldName, *input.Name, auth.MaxNameLength)
	}
	if input.Email != nil {
		v.Email(auth.FieldEmail, strings.TrimSpace(*input.Email))
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		Name:  input.Name,
		Email: input.Email,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

/*
DELETE /api/v1/account/me/sessions.

Description: Signs the user out of every device, including this one.

Response:
  - 204: No Content
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) signOutEverywhere(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.SignOutEverywhere(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
