// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/ctxutil"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer defines the contract for signing and verifying session tokens.
// It is satisfied by [sec.TokenIssuer].
type TokenIssuer interface {
	SignAccess(claims sec.AccessClaims) (string, error)
	SignRefresh(userID string, tokenVersion int64) (string, error)
	VerifyRefresh(tokenString string) (*sec.RefreshClaims, error)
	RefreshSubject(tokenString string) (string, error)
	AccessLifetime() sec.Lifetime
	RefreshLifetime() sec.Lifetime
}

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// session issuance or the token-version ordering must be reviewed by the
// security team.
type Service struct {
	userRepository      UserRepository
	directoryRepository DirectoryRepository
	tokenIssuer         TokenIssuer
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(userRepo UserRepository, directoryRepo DirectoryRepository, tokens TokenIssuer) *Service {
	return &Service{
		userRepository:      userRepo,
		directoryRepository: directoryRepo,
		tokenIssuer:         tokens,
	}
}

// FoldIdentity normalizes an email or username for case-insensitive comparison.
func FoldIdentity(value string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(value))
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new learner.
type RegisterInput struct {
	Email          string
	Password       string
	Name           string
	Username       string
	OrganizationID string
	UniversityID   string
	CourseIDs      []string
}

/*
Register validates references, hashes the password, persists a new learner
account and issues its first session.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Session: The first session of the new account
  - error: Conflict (identity exists), NotFound (organization/university),
    ValidationError (reference linkage) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Session, error) {
	email := FoldIdentity(input.Email)
	username := FoldIdentity(input.Username)

	// Verify email uniqueness. Return a client-safe Conflict err.
	if err := service.ensureAbsent(service.userRepository.FindByEmail(context, email)); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Conflict(MsgEmailRegistered)
		}
		return nil, fmt.Errorf("auth_service_register_email_lookup_failed: %w", err)
	}

	// Verify username uniqueness. Return a client-safe Conflict err.
	if err := service.ensureAbsent(service.userRepository.FindByUsername(context, username)); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Conflict(MsgUsernameTaken)
		}
		return nil, fmt.Errorf("auth_service_register_username_lookup_failed: %w", err)
	}

	// Resolve the optional organization → university → courses chain.
	scope, err := service.resolveScope(context, input)
	if err != nil {
		return nil, err
	}

	// Prevent storing plain-text passwords.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:             uuid.New(),
		Email:          email,
		Username:       username,
		PasswordHash:   hashedPassword,
		Name:           strings.TrimSpace(input.Name),
		Role:           sec.RoleLearner,
		OrganizationID: scope.organizationID,
		UniversityIDs:  scope.universityIDs,
		CourseIDs:      scope.courseIDs,
		IsActive:       true,
		TokenVersion:   0,
	}

	// Persist the user. A concurrent registration may still win the unique index.
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "auth_user_registered", slog.String("user_id", user.ID))

	return service.issueSession(context, user)
}

// registrationScope is the resolved set of directory references for a new account.
type registrationScope struct {
	organizationID *string
	universityIDs  []string
	courseIDs      []string
}

// resolveScope validates the organization/university/course references.
//
// Each level is optional, but a lower level requires the level above it.
func (service *Service) resolveScope(context context.Context, input RegisterInput) (*registrationScope, error) {
	scope := &registrationScope{universityIDs: []string{}, courseIDs: []string{}}

	organizationID := strings.TrimSpace(input.OrganizationID)
	universityID := strings.TrimSpace(input.UniversityID)

	if organizationID == "" {
		if universityID != "" {
			return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
				Field: FieldOrganizationID, Message: "Required when a university is selected",
			})
		}
		if len(input.CourseIDs) > 0 {
			return nil, apperr.ValidationError(MsgInvalidCourses)
		}
		return scope, nil
	}

	organization, err := service.directoryRepository.FindOrganization(context, organizationID)
	if err != nil {
		return nil, err
	}
	scope.organizationID = &organization.ID

	if universityID == "" {
		if len(input.CourseIDs) > 0 {
			return nil, apperr.ValidationError(MsgInvalidCourses)
		}
		return scope, nil
	}

	university, err := service.directoryRepository.FindUniversity(context, universityID)
	if err != nil {
		return nil, err
	}
	if university.OrganizationID != organization.ID {
		return nil, apperr.ValidationError("University does not belong to the selected organization")
	}
	scope.universityIDs = []string{university.ID}

	if len(input.CourseIDs) == 0 {
		return scope, nil
	}

	courseIDs := dedupe(input.CourseIDs)
	courses, err := service.directoryRepository.FindCourses(context, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_courses_failed: %w", err)
	}
	if len(courses) != len(courseIDs) {
		return nil, apperr.ValidationError(MsgInvalidCourses)
	}
	for _, course := range courses {
		if course.UniversityID != university.ID || course.FormID == nil {
			return nil, apperr.ValidationError(MsgInvalidCourses)
		}
	}
	scope.courseIDs = courseIDs

	return scope, nil
}

// ensureAbsent converts a lookup into a uniqueness check.
// A found row yields a Conflict, NotFound yields nil, anything else is returned.
func (service *Service) ensureAbsent(_ *User, err error) error {
	switch {
	case err == nil:
		return apperr.Conflict("exists")
	case apperr.IsNotFound(err):
		return nil
	default:
		return err
	}
}

// # Authentication Flow

/*
Login validates user credentials and issues security tokens.

Unknown emails and wrong passwords share one message and cost one bcrypt
comparison each. A deactivated account with the correct password gets its
own message.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Session: Transport-ready session
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, email, password string) (*Session, error) {
	logger := ctxutil.GetLogger(context)

	user, err := service.userRepository.FindByEmail(context, FoldIdentity(email))
	if err != nil {
		if !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
		}

		// Equalize timing with the wrong-password path.
		sec.BurnPasswordCheck(password)
		logger.InfoContext(context, "auth_login_failed", slog.String("reason", "unknown_email"))
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}

	// bcrypt compares in constant time.
	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		logger.InfoContext(context, "auth_login_failed", slog.String("reason", "wrong_password"), slog.String("user_id", user.ID))
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}

	if !user.IsActive {
		logger.InfoContext(context, "auth_login_failed", slog.String("reason", "deactivated"), slog.String("user_id", user.ID))
		return nil, apperr.Unauthorized(MsgAccountDeactivated)
	}

	session, err := service.issueSession(context, user)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(context, "auth_login_succeeded", slog.String("user_id", user.ID))
	return session, nil
}

// # Session Management

/*
Refresh exchanges a refresh token for a new session.

The token must verify, its subject must be an existing active user, and its
embedded version must equal the stored counter. Issuance then increments the
counter atomically: concurrent refreshes with one token all succeed, and only
the session signed under the highest version stays usable.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Session: Rotated session
  - error: Unauthorized on any verification failure
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (*Session, error) {
	logger := ctxutil.GetLogger(context)

	claims, err := service.tokenIssuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized(MsgInvalidRefreshToken)
	}

	user, err := service.userRepository.FindByID(context, claims.Subject)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(MsgInvalidRefreshToken)
		}
		return nil, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}

	if !user.IsActive {
		return nil, apperr.Unauthorized(MsgInvalidRefreshToken)
	}

	if claims.TokenVersion != user.TokenVersion {
		// A stale version means the token was already rotated or revoked.
		logger.WarnContext(context, "auth_refresh_stale_version",
			slog.String("user_id", user.ID),
			slog.Int64("presented", claims.TokenVersion),
			slog.Int64("stored", user.TokenVersion),
		)
		return nil, apperr.Unauthorized(MsgInvalidRefreshToken)
	}

	return service.issueSession(context, user)
}

/*
Logout ends every session of the user identified by the refresh token, or by
userID when the token is absent, unusable or names an unknown account.

It never fails from the caller's point of view; problems are logged.

Parameters:
  - context: context.Context
  - refreshToken: string (may be empty)
  - userID: string (may be empty)
*/
func (service *Service) Logout(context context.Context, refreshToken, userID string) {
	logger := ctxutil.GetLogger(context)

	subject := ""
	if refreshToken != "" {
		if tokenSubject, err := service.tokenIssuer.RefreshSubject(refreshToken); err == nil {
			subject = tokenSubject
		} else {
			logger.DebugContext(context, "auth_logout_token_unusable", slog.Any("error", err))
		}
	}
	if subject == "" {
		subject = userID
	}
	if subject == "" {
		return
	}

	err := service.RevokeSessions(context, subject)
	if apperr.IsNotFound(err) && userID != "" && userID != subject {
		// The token names an account that no longer exists.
		subject = userID
		err = service.RevokeSessions(context, subject)
	}
	if err != nil {
		logger.ErrorContext(context, "auth_logout_revoke_failed", slog.String("user_id", subject), slog.Any("error", err))
		return
	}

	logger.InfoContext(context, "auth_logout_succeeded", slog.String("user_id", subject))
}

/*
RevokeSessions bumps the user's token-version, invalidating every refresh
token issued so far.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: NotFound or storage failures
*/
func (service *Service) RevokeSessions(context context.Context, userID string) error {
	if _, err := service.userRepository.IncrementTokenVersion(context, userID); err != nil {
		return fmt.Errorf("auth_service_revoke_sessions_failed: %w", err)
	}
	return nil
}

/*
ChangePassword verifies the current password, stores the new hash and issues
a fresh session. Every earlier session, including the caller's, is invalidated.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - *Session: Replacement session
  - error: Unauthorized or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) (*Session, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Authentication required")
		}
		return nil, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	if !user.IsActive {
		return nil, apperr.Unauthorized(MsgAccountDeactivated)
	}

	// Verify the current password before allowing change
	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return nil, apperr.Unauthorized(MsgWrongCurrentPassword)
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return nil, fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}
	user.PasswordHash = hashedPassword

	ctxutil.GetLogger(context).InfoContext(context, "auth_password_changed", slog.String("user_id", userID))

	return service.issueSession(context, user)
}

// # Session Issuance

// issueSession advances the token-version and signs a token pair under the new value.
//
// The increment happens in storage before signing, so a refresh token never
// carries a version that was not already persisted.
func (service *Service) issueSession(context context.Context, user *User) (*Session, error) {
	version, err := service.userRepository.IncrementTokenVersion(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_version_failed: %w", err)
	}
	user.TokenVersion = version

	organizationName, err := service.organizationName(context, user)
	if err != nil {
		return nil, err
	}
	profile := user.Profile(organizationName)

	accessToken, err := service.tokenIssuer.SignAccess(sec.AccessClaims{
		UserID:           user.ID,
		Name:             user.Name,
		Email:            user.Email,
		Role:             string(user.Role),
		OrganizationID:   profile.OrganizationID,
		OrganizationName: organizationName,
		UniversityIDs:    profile.UniversityIDs,
		CourseIDs:        profile.CourseIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, err := service.tokenIssuer.SignRefresh(user.ID, version)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return &Session{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     service.tokenIssuer.AccessLifetime().String(),
		RefreshMaxAge: int(service.tokenIssuer.RefreshLifetime().Duration().Seconds()),
		User:          profile,
	}, nil
}

// organizationName resolves the display name embedded in access tokens.
// A dangling organization reference yields an empty name.
func (service *Service) organizationName(context context.Context, user *User) (string, error) {
	if user.OrganizationID == nil {
		return "", nil
	}

	organization, err := service.directoryRepository.FindOrganization(context, *user.OrganizationID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("auth_service_organization_lookup_failed: %w", err)
	}
	return organization.Name, nil
}

// dedupe removes blanks and duplicates while keeping order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, duplicate := seen[id]; duplicate {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
