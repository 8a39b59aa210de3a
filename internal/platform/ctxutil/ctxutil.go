// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil stores and reads the per-request values shared by the
// middleware chain, handlers and services: the correlation ID, the scoped
// logger and the verified access-token claims.
//
// Keys are unexported, so no other package can read or overwrite them.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/admitly/internal/platform/sec"
)

type contextKey uint8

const (
	requestIDKey contextKey = iota + 1
	loggerKey
	claimsKey
)

// # Request Tracing

// WithRequestID attaches the X-Request-ID correlation value.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the correlation value, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// # Structured Logging

// WithLogger attaches the request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger returns the request-scoped logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Identity & Access

/*
WithAuthUser attaches verified access-token claims.

When a request-scoped logger is present it is replaced by one carrying the
user_id attribute, so every later log line names the caller.
*/
func WithAuthUser(ctx context.Context, claims *sec.AuthClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil && claims != nil {
		ctx = WithLogger(ctx, logger.With(slog.String("user_id", claims.UserID())))
	}
	return ctx
}

// GetAuthUser returns the verified claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(claimsKey).(*sec.AuthClaims)
	return claims
}

// GetUserID returns the subject of the authenticated user, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if claims := GetAuthUser(ctx); claims != nil {
		return claims.UserID()
	}
	return ""
}
