// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces declared by the consumers.
//
// Two token kinds are issued, each under its own HMAC secret:
//
//   - Access tokens carry the user's identity claims and live for minutes.
//   - Refresh tokens carry only the subject and a token-version snapshot and
//     live for days. They are revoked server-side by bumping the stored version.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Verification Errors

var (
	// ErrTokenExpired is returned when the token's exp claim is in the past.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenMalformed is returned when the token cannot be parsed or lacks required claims.
	ErrTokenMalformed = errors.New("sec: token malformed")

	// ErrTokenSignature is returned when the signature does not match the secret.
	ErrTokenSignature = errors.New("sec: token signature invalid")
)

// Default lifetimes used when the configured value is missing or invalid.
var (
	DefaultAccessLifetime  = Lifetime{Magnitude: 15, Unit: UnitMinute}
	DefaultRefreshLifetime = Lifetime{Magnitude: 7, Unit: UnitDay}
)

// # Claims

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the identity and scope references directly inside the JWT,
// the [middleware.Authenticate] can reconstruct the active user context
// WITHOUT querying the database on every single API request.
type AuthClaims struct {
	jwt.RegisteredClaims

	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Role             string   `json:"role"`
	OrganizationID   string   `json:"organizationId,omitempty"`
	OrganizationName string   `json:"organizationName,omitempty"`
	UniversityIDs    []string `json:"universityIds"`
	CourseIDs        []string `json:"courseIds"`
}

// UserID returns the subject of the access token.
func (c *AuthClaims) UserID() string {
	return c.Subject
}

// AccessClaims is the identity snapshot signed into an access token.
type AccessClaims struct {
	UserID           string
	Name             string
	Email            string
	Role             string
	OrganizationID   string
	OrganizationName string
	UniversityIDs    []string
	CourseIDs        []string
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims

	TokenVersion int64 `json:"tokenVersion"`
}

// # Issuer

// TokenConfig holds the secrets and lifetimes injected into [TokenIssuer].
type TokenConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessLifetime  Lifetime
	RefreshLifetime Lifetime
	Issuer          string
}

// TokenIssuer signs and verifies access and refresh tokens using HS256.
type TokenIssuer struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessLifetime  Lifetime
	refreshLifetime Lifetime
	issuer          string
	now             func() time.Time
}

// IssuerOption customizes a [TokenIssuer].
type IssuerOption func(*TokenIssuer)

// WithClock replaces the issuer's time source. Used by tests to move time.
func WithClock(now func() time.Time) IssuerOption {
	return func(issuer *TokenIssuer) {
		issuer.now = now
	}
}

// NewTokenIssuer validates the configuration and builds a [TokenIssuer].
//
// Invalid lifetimes fall back to [DefaultAccessLifetime] / [DefaultRefreshLifetime]
// so a token is never issued without a bounded expiry.
func NewTokenIssuer(cfg TokenConfig, options ...IssuerOption) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("sec: access and refresh secrets must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}

	issuer := &TokenIssuer{
		accessSecret:    []byte(cfg.AccessSecret),
		refreshSecret:   []byte(cfg.RefreshSecret),
		accessLifetime:  cfg.AccessLifetime.OrDefault(DefaultAccessLifetime),
		refreshLifetime: cfg.RefreshLifetime.OrDefault(DefaultRefreshLifetime),
		issuer:          cfg.Issuer,
		now:             time.Now,
	}

	for _, option := range options {
		option(issuer)
	}

	return issuer, nil
}

// AccessLifetime returns the effective access-token lifetime.
func (issuer *TokenIssuer) AccessLifetime() Lifetime { return issuer.accessLifetime }

// RefreshLifetime returns the effective refresh-token lifetime.
func (issuer *TokenIssuer) RefreshLifetime() Lifetime { return issuer.refreshLifetime }

// SignAccess creates a signed access token for the given identity snapshot.
func (issuer *TokenIssuer) SignAccess(claims AccessClaims) (string, error) {
	currentTime := issuer.now()

	payload := AuthClaims{
		RegisteredClaims: issuer.registered(claims.UserID, currentTime, issuer.accessLifetime),
		Name:             claims.Name,
		Email:            claims.Email,
		Role:             claims.Role,
		OrganizationID:   claims.OrganizationID,
		OrganizationName: claims.OrganizationName,
		UniversityIDs:    nonNil(claims.UniversityIDs),
		CourseIDs:        nonNil(claims.CourseIDs),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(issuer.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	return signed, nil
}

// SignRefresh creates a signed refresh token embedding the token-version snapshot.
func (issuer *TokenIssuer) SignRefresh(userID string, tokenVersion int64) (string, error) {
	currentTime := issuer.now()

	payload := RefreshClaims{
		RegisteredClaims: issuer.registered(userID, currentTime, issuer.refreshLifetime),
		TokenVersion:     tokenVersion,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(issuer.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return signed, nil
}

// VerifyAccess checks an access token against the access secret.
//
// It satisfies the middleware's TokenVerifier contract.
func (issuer *TokenIssuer) VerifyAccess(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	if err := issuer.Verify(tokenString, issuer.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token against the refresh secret.
func (issuer *TokenIssuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := issuer.Verify(tokenString, issuer.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// RefreshSubject returns the subject of a refresh token whose signature is valid,
// ignoring expiry. Logout uses it so an expired cookie can still end its sessions.
func (issuer *TokenIssuer) RefreshSubject(tokenString string) (string, error) {
	claims := &RefreshClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return issuer.refreshSecret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrTokenSignature
	default:
		return "", ErrTokenMalformed
	}

	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

// Verify parses tokenString into claims using secret, collapsing every failure
// into one of [ErrTokenExpired], [ErrTokenMalformed] or [ErrTokenSignature].
func (issuer *TokenIssuer) Verify(tokenString string, secret []byte, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(issuer.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	switch {
	case err == nil && token.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return ErrTokenMalformed
	}

	return nil
}

func (issuer *TokenIssuer) registered(subject string, issuedAt time.Time, lifetime Lifetime) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(lifetime.Duration())),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
