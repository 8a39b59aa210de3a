// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/admitly/internal/platform/ctxutil"
	"github.com/taibuivan/admitly/internal/platform/sec"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_AuthUser verifies that AuthClaims can be stored in context.
*/
func TestContext_AuthUser(t *testing.T) {
	ctx := context.Background()
	claims := &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
		Role:             "admin",
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetAuthUser(ctx))
	assert.Empty(t, ctxutil.GetUserID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithAuthUser(ctx, claims)
	retrieved := ctxutil.GetAuthUser(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "user-123", retrieved.UserID())
	assert.Equal(t, "admin", retrieved.Role)
	assert.Equal(t, "user-123", ctxutil.GetUserID(ctx))
}

func TestContext_AuthUserScopesLogger(t *testing.T) {
	var buffer bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buffer, nil))

	ctx := ctxutil.WithLogger(context.Background(), base)
	ctx = ctxutil.WithAuthUser(ctx, &sec.AuthClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}})

	ctxutil.GetLogger(ctx).Info("profile_viewed")
	assert.Contains(t, buffer.String(), `"user_id":"user-123"`)

	// Without a scoped logger nothing is installed.
	bare := ctxutil.WithAuthUser(context.Background(), &sec.AuthClaims{})
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(bare))
}
