// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/constants"
	"github.com/taibuivan/admitly/internal/platform/ctxutil"
	"github.com/taibuivan/admitly/internal/platform/mail"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/pkg/uuid"
)

// # Contracts & Types

// MailDispatcher schedules an email without waiting for delivery.
// It is satisfied by [mail.Async].
type MailDispatcher interface {
	Go(context context.Context, message mail.Message)
}

// ResetConfig tunes the password-reset flow.
type ResetConfig struct {
	// FrontendBaseURL is the origin that serves the reset-password page.
	FrontendBaseURL string

	// TokenTTL is how long an emailed link stays valid. Defaults to one hour.
	TokenTTL time.Duration
}

// ResetService implements the forgot-password and reset-password flows.
//
// Responses never reveal whether an email belongs to an account.
type ResetService struct {
	userRepository  UserRepository
	resetRepository ResetRecordRepository
	mailer          MailDispatcher
	throttle        ResetThrottle
	revoker         SessionRevoker
	config          ResetConfig
	now             func() time.Time
}

// ResetOption customizes a [ResetService].
type ResetOption func(*ResetService)

// WithThrottle limits how many links can be issued per email.
func WithThrottle(throttle ResetThrottle) ResetOption {
	return func(service *ResetService) { service.throttle = throttle }
}

// WithSessionRevoker ends every session of the user after a successful reset.
func WithSessionRevoker(revoker SessionRevoker) ResetOption {
	return func(service *ResetService) { service.revoker = revoker }
}

// WithResetClock replaces the time source used for expiry stamps.
func WithResetClock(now func() time.Time) ResetOption {
	return func(service *ResetService) { service.now = now }
}

// NewResetService constructs a new [ResetService].
func NewResetService(
	userRepo UserRepository,
	resetRepo ResetRecordRepository,
	mailer MailDispatcher,
	config ResetConfig,
	options ...ResetOption,
) *ResetService {
	if config.TokenTTL <= 0 {
		config.TokenTTL = constants.ResetTokenTTL
	}
	config.FrontendBaseURL = strings.TrimRight(config.FrontendBaseURL, "/")

	service := &ResetService{
		userRepository:  userRepo,
		resetRepository: resetRepo,
		mailer:          mailer,
		config:          config,
		now:             time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// # Password Recovery

/*
ForgotPassword issues a reset link for an existing active account.

The returned message is identical whether or not the account exists, is
active, or is throttled. Internal failures are logged and swallowed for the
same reason.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: The fixed confirmation message
*/
func (service *ResetService) ForgotPassword(context context.Context, email string) string {
	if err := service.issue(context, FoldIdentity(email)); err != nil {
		ctxutil.GetLogger(context).ErrorContext(context, "auth_reset_issue_failed", slog.Any("error", err))
	}
	return MsgForgotPasswordSent
}

// issue performs the side effects of ForgotPassword. Silent skips return nil.
func (service *ResetService) issue(context context.Context, email string) error {
	logger := ctxutil.GetLogger(context)

	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			logger.DebugContext(context, "auth_reset_skipped", slog.String("reason", "unknown_email"))
			return nil
		}
		return fmt.Errorf("auth_reset_lookup_failed: %w", err)
	}

	if !user.IsActive {
		logger.InfoContext(context, "auth_reset_skipped", slog.String("reason", "deactivated"), slog.String("user_id", user.ID))
		return nil
	}

	if service.throttle != nil {
		allowed, err := service.throttle.Allow(context, email)
		if err != nil {
			// Fail open: the throttle is a convenience, not a security boundary.
			logger.WarnContext(context, "auth_reset_throttle_unavailable", slog.Any("error", err))
		} else if !allowed {
			logger.WarnContext(context, "auth_reset_throttled", slog.String("user_id", user.ID))
			return nil
		}
	}

	token, err := sec.GenerateSecureToken(constants.ResetTokenBytes)
	if err != nil {
		return fmt.Errorf("auth_reset_generate_token_failed: %w", err)
	}

	currentTime := service.now()
	record := &PasswordResetRecord{
		ID:        uuid.New(),
		Email:     email,
		TokenHash: sec.HashToken(token),
		ExpiresAt: currentTime.Add(service.config.TokenTTL),
		CreatedAt: currentTime,
	}

	// Supersede older grants and store the new one atomically.
	if err := service.resetRepository.ReplaceForEmail(context, record); err != nil {
		return fmt.Errorf("auth_reset_store_failed: %w", err)
	}

	service.mailer.Go(context, mail.Message{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: mail.TemplatePasswordReset,
		Data: map[string]string{
			"name":      user.Name,
			"link":      service.resetLink(token, email),
			"expiresAt": record.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})

	logger.InfoContext(context, "auth_reset_issued", slog.String("user_id", user.ID))
	return nil
}

// resetLink builds "<frontend>/reset-password?token=<t>&email=<e>".
func (service *ResetService) resetLink(token, email string) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("email", email)
	return service.config.FrontendBaseURL + constants.ResetPasswordPath + "?" + query.Encode()
}

/*
ResetPassword consumes a reset grant and replaces the account password.

Unknown, expired, superseded and already-used tokens all fail with the same
validation error.

Parameters:
  - context: context.Context
  - token: string
  - email: string
  - newPassword: string

Returns:
  - string: The fixed success message
  - error: ValidationError, Conflict (deactivated account) or storage failures
*/
func (service *ResetService) ResetPassword(context context.Context, token, email, newPassword string) (string, error) {
	logger := ctxutil.GetLogger(context)
	email = FoldIdentity(email)

	record, err := service.resetRepository.FindValid(context, email, sec.HashToken(token))
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", apperr.ValidationError(MsgInvalidResetToken)
		}
		return "", fmt.Errorf("auth_reset_find_failed: %w", err)
	}

	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", apperr.ValidationError(MsgInvalidResetToken)
		}
		return "", fmt.Errorf("auth_reset_user_lookup_failed: %w", err)
	}

	if !user.IsActive {
		return "", apperr.Conflict(MsgAccountDeactivated)
	}

	// Hash before redeeming so a hashing failure leaves the grant usable.
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("auth_reset_hash_failed: %w", err)
	}

	// A grant spent by a concurrent reset surfaces as NotFound.
	superseded, err := service.resetRepository.Redeem(context, record, user.ID, hashedPassword)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", apperr.ValidationError(MsgInvalidResetToken)
		}
		return "", fmt.Errorf("auth_reset_redeem_failed: %w", err)
	}

	if service.revoker != nil {
		if err := service.revoker.RevokeSessions(context, user.ID); err != nil {
			logger.ErrorContext(context, "auth_reset_revoke_failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	logger.InfoContext(context, "auth_password_reset",
		slog.String("user_id", user.ID),
		slog.Int64("superseded", superseded),
		slog.Bool("sessions_revoked", service.revoker != nil),
	)

	return MsgPasswordResetDone, nil
}

/*
PurgeExpired removes reset grants that expired more than retention ago.

Parameters:
  - context: context.Context
  - retention: time.Duration

Returns:
  - int64: Number of records removed
  - error: Storage failures
*/
func (service *ResetService) PurgeExpired(context context.Context, retention time.Duration) (int64, error) {
	removed, err := service.resetRepository.PurgeExpired(context, service.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("auth_reset_purge_failed: %w", err)
	}
	return removed, nil
}
