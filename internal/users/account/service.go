// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/users/auth"
)

// # Service Layer

// Service orchestrates business logic for user profiles.
type Service struct {
	accountRepository AccountRepository
	organizations     OrganizationFinder
	revoker           auth.SessionRevoker
	logger            *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	accountRepo AccountRepository,
	organizations OrganizationFinder,
	revoker auth.SessionRevoker,
	logger *slog.Logger,
) *Service {
	return &Service{
		accountRepository: accountRepo,
		organizations:     organizations,
		revoker:           revoker,
		logger:            logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the public profile of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.PublicProfile: The profile projection
  - error: apperr.NotFound("Account") or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.PublicProfile, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return service.project(context, user)
}

// UpdateProfileInput defines the mutable subset of user profile fields.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	Name  *string
	Email *string
}

/*
UpdateProfile applies a partial set of changes to a user's profile.

A new email is folded and must not belong to another account.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.PublicProfile: The updated profile
  - error: apperr.Conflict, apperr.NotFound or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.PublicProfile, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}

	if input.Email != nil {
		email := auth.FoldIdentity(*input.Email)
		if email != user.Email {
			owner, err := service.accountRepository.FindByEmail(context, email)
			switch {
			case err == nil && owner.ID != user.ID:
				return nil, apperr.Conflict(MsgEmailInUse)
			case err != nil && !apperr.IsNotFound(err):
				return nil, fmt.Errorf("account_service_update_email_lookup_failed: %w", err)
			}
			user.Email = email
		}
	}

	// Persist changes
	if err := service.accountRepository.UpdateProfile(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_profile_updated", slog.String("user_id", userID))

	return service.project(context, user)
}

/*
SignOutEverywhere ends every session of the user, including the current one.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Revocation failures
*/
func (service *Service) SignOutEverywhere(context context.Context, userID string) error {
	if err := service.revoker.RevokeSessions(context, userID); err != nil {
		return fmt.Errorf("account_service_sign_out_everywhere_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_sessions_revoked", slog.String("user_id", userID))

	return nil
}

// project builds the public profile, resolving the organization name.
func (service *Service) project(context context.Context, user *auth.User) (*auth.PublicProfile, error) {
	organizationName := ""
	if user.OrganizationID != nil {
		organization, err := service.organizations.FindOrganization(context, *user.OrganizationID)
		switch {
		case err == nil:
			organizationName = organization.Name
		case !apperr.IsNotFound(err):
			return nil, fmt.Errorf("account_service_organization_lookup_failed: %w", err)
		}
	}
	return user.Profile(organizationName), nil
}
