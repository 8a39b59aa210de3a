// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Client Messages

// Fixed client-facing messages. Security-sensitive paths must not vary these
// by account state.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgAccountDeactivated   = "Account has been deactivated"
	MsgInvalidRefreshToken  = "Invalid or expired refresh token"
	MsgInvalidResetToken    = "Invalid or expired reset token"
	MsgWrongCurrentPassword = "Current password is incorrect"
	MsgForgotPasswordSent   = "If an account exists for this email, a reset link has been sent."
	MsgPasswordResetDone    = "Password has been reset successfully."
	MsgEmailRegistered      = "Email is already registered"
	MsgUsernameTaken        = "Username is already taken"
	MsgInvalidCourses       = "Invalid course selection"
)

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldName            = "name"
	FieldOrganizationID  = "organizationId"
	FieldUniversityID    = "universityId"
	FieldCourseIDs       = "courseIds"
	FieldToken           = "token"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
)

// # Limits

const (
	// MaxNameLength bounds the display name.
	MaxNameLength = 100

	// MaxCourseSelections bounds the courses chosen at registration.
	MaxCourseSelections = 20
)
