// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Email and username arguments are expected in folded form.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string (folded)

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string (folded)

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account together with its
		university and course links.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict on a duplicate email/username, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		IncrementTokenVersion atomically adds one to the user's token-version
		and returns the new value. It is a single read-modify-write in storage.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int64: The post-increment version
		  - error: apperr.NotFound or persistence failures
	*/
	IncrementTokenVersion(context context.Context, userID string) (int64, error)
}

// # Reset Record Data Access

// ResetRecordRepository stores password-reset grants.
type ResetRecordRepository interface {

	/*
		ReplaceForEmail marks every unused record for record.Email as used and
		inserts record, in one transaction serialized per email.

		Parameters:
		  - context: context.Context
		  - record: *PasswordResetRecord

		Returns:
		  - error: Persistence failures
	*/
	ReplaceForEmail(context context.Context, record *PasswordResetRecord) error

	/*
		FindValid returns the unused, unexpired record matching email and tokenHash.

		Parameters:
		  - context: context.Context
		  - email: string (folded)
		  - tokenHash: string

		Returns:
		  - *PasswordResetRecord: The matching grant
		  - error: apperr.NotFound or retrieval failures
	*/
	FindValid(context context.Context, email, tokenHash string) (*PasswordResetRecord, error)

	/*
		Redeem spends a grant in one transaction: it consumes record, stores
		newHash for userID and supersedes every other unused grant of the
		record's email. Nothing is written unless every step succeeds.

		Parameters:
		  - context: context.Context
		  - record: *PasswordResetRecord
		  - userID: string
		  - newHash: string

		Returns:
		  - int64: Number of other grants superseded
		  - error: apperr.NotFound when the grant was already spent or the
		    account is gone, or persistence failures
	*/
	Redeem(context context.Context, record *PasswordResetRecord, userID, newHash string) (int64, error)

	/*
		PurgeExpired deletes records that expired before cutoff.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - int64: Number of records deleted
		  - error: Persistence failures
	*/
	PurgeExpired(context context.Context, cutoff time.Time) (int64, error)
}

// # Directory Data Access

// DirectoryRepository resolves the organization/university/course references
// supplied at registration. It is read-only from this package's point of view.
type DirectoryRepository interface {
	// FindOrganization returns apperr.NotFound("Organization") when absent.
	FindOrganization(context context.Context, id string) (*Organization, error)

	// FindUniversity returns apperr.NotFound("University") when absent.
	FindUniversity(context context.Context, id string) (*University, error)

	// FindCourses returns the courses that exist among ids. Missing ids are simply absent.
	FindCourses(context context.Context, ids []string) ([]Course, error)
}

// # Throttling

// ResetThrottle limits how often reset links can be issued for one email.
type ResetThrottle interface {
	// Allow records an attempt for email and reports whether it is within the limit.
	Allow(context context.Context, email string) (bool, error)
}

// SessionRevoker invalidates every outstanding refresh token of a user.
type SessionRevoker interface {
	RevokeSessions(context context.Context, userID string) error
}
