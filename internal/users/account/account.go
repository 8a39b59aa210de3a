// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles profile management for signed-in users.

It lets users view and edit their own identity data and sign out of every
device at once.

# Architecture

  - Domain: This package depends on the auth package for the User entity and
    its public projection.
  - Security: Profile edits never touch the token-version counter. Signing out
    everywhere delegates to [auth.SessionRevoker].
*/
package account

import (
	"context"

	"github.com/taibuivan/admitly/internal/users/auth"
)

// # Client Messages

const (
	// MsgEmailInUse is returned when a profile update collides with another account.
	MsgEmailInUse = "Email is already in use"
)

// # Repository Contracts

// AccountRepository defines the persistence contract for user profiles.
type AccountRepository interface {
	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	// FindByEmail retrieves a user by folded email. Used for uniqueness checks.
	FindByEmail(context context.Context, email string) (*auth.User, error)

	/*
		UpdateProfile persists the mutable profile fields (name, email).

		Parameters:
		  - context: context.Context
		  - user: *auth.User (Hydrated entity with changes)

		Returns:
		  - error: apperr.Conflict on a duplicate email, or storage failures
	*/
	UpdateProfile(context context.Context, user *auth.User) error
}

// OrganizationFinder resolves the organization name shown on profiles.
// It is satisfied by [auth.DirectoryRepository].
type OrganizationFinder interface {
	FindOrganization(context context.Context, id string) (*auth.Organization, error)
}
