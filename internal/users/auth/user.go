// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, PasswordResetRecord) and the logic for
registration, login, token refresh, logout, password change and password reset.

# Architecture

Sessions are stateless JWT pairs. Revocation is driven by a per-user
token-version counter: every refresh token embeds the counter value it was
issued under, and the stored counter is incremented atomically on every
login, refresh, logout and password change.
*/
package auth

import (
	"time"

	"github.com/taibuivan/admitly/internal/platform/sec"
)

// # Domain Entities

// User represents a registered account of the Admitly platform.
type User struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	Username       string       `json:"username"`
	PasswordHash   string       `json:"-"` // Explicitly omitted from JSON for security.
	Name           string       `json:"name"`
	Role           sec.UserRole `json:"role"`
	OrganizationID *string      `json:"organizationId,omitempty"`
	UniversityIDs  []string     `json:"universityIds"`
	CourseIDs      []string     `json:"courseIds"`
	IsActive       bool         `json:"isActive"`
	TokenVersion   int64        `json:"-"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// PublicProfile is the client-facing projection of a [User].
// It never carries the password hash or the token-version counter.
type PublicProfile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	OrganizationID   string    `json:"organizationId,omitempty"`
	OrganizationName string    `json:"organizationName,omitempty"`
	UniversityIDs    []string  `json:"universityIds"`
	CourseIDs        []string  `json:"courseIds"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Profile projects the user into its public form.
func (user *User) Profile(organizationName string) *PublicProfile {
	profile := &PublicProfile{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		Name:             user.Name,
		Role:             string(user.Role),
		OrganizationName: organizationName,
		UniversityIDs:    nonNilIDs(user.UniversityIDs),
		CourseIDs:        nonNilIDs(user.CourseIDs),
		IsActive:         user.IsActive,
		CreatedAt:        user.CreatedAt,
	}
	if user.OrganizationID != nil {
		profile.OrganizationID = *user.OrganizationID
	}
	return profile
}

// PasswordResetRecord is a single-use, time-bound reset grant.
//
// Only the SHA-256 digest of the emailed token is stored.
type PasswordResetRecord struct {
	ID        string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// # Directory Documents

// Organization is a tenant of the platform (e.g. an admissions agency).
type Organization struct {
	ID   string
	Name string
}

// University belongs to exactly one organization.
type University struct {
	ID             string
	Name           string
	OrganizationID string
}

// Course belongs to a university. FormID is nil until an application form is attached.
type Course struct {
	ID           string
	Name         string
	UniversityID string
	FormID       *string
}

// # Sessions

// Session is the result of a successful credential exchange.
//
// The refresh token is delivered as a cookie and never appears in JSON.
type Session struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     string // access lifetime, e.g. "15m"
	RefreshMaxAge int    // refresh lifetime in seconds
	User          *PublicProfile
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
