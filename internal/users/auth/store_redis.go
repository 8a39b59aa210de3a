// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/admitly/internal/platform/constants"
)

// RedisResetThrottle implements [ResetThrottle] with a fixed-window counter per email.
type RedisResetThrottle struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewResetThrottle creates a Redis-backed throttle allowing limit requests per window.
// A non-positive limit disables throttling.
func NewResetThrottle(client *redis.Client, limit int, window time.Duration) *RedisResetThrottle {
	return &RedisResetThrottle{client: client, limit: int64(limit), window: window}
}

/*
Allow counts one forgot-password request for email.

Parameters:
  - context: context.Context
  - email: string (folded)

Returns:
  - bool: false once the window's budget is exhausted
  - error: Connectivity errors
*/
func (throttle *RedisResetThrottle) Allow(context context.Context, email string) (bool, error) {
	if throttle.limit <= 0 {
		return true, nil
	}

	key := constants.RedisPrefixResetThrottle + email

	count, err := throttle.client.Incr(context, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis_reset_throttle_incr_failed: %w", err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := throttle.client.Expire(context, key, throttle.window).Err(); err != nil {
			return false, fmt.Errorf("redis_reset_throttle_expire_failed: %w", err)
		}
	}

	return count <= throttle.limit, nil
}
