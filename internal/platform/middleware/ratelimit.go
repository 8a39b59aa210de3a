// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/constants"
	"github.com/taibuivan/admitly/internal/platform/respond"
)

// # Rate Limiting

// ipBuckets holds one token bucket per client IP.
type ipBuckets struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	clients map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPBuckets(requestsPerSecond float64, burst int) *ipBuckets {
	return &ipBuckets{
		perSec:  rate.Limit(requestsPerSecond),
		burst:   burst,
		clients: make(map[string]*bucket),
	}
}

func (buckets *ipBuckets) allow(ip string, now time.Time) bool {
	buckets.mu.Lock()
	defer buckets.mu.Unlock()

	client, found := buckets.clients[ip]
	if !found {
		client = &bucket{limiter: rate.NewLimiter(buckets.perSec, buckets.burst)}
		buckets.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// sweep forgets clients idle for longer than ttl.
func (buckets *ipBuckets) sweep(now time.Time, ttl time.Duration) {
	buckets.mu.Lock()
	defer buckets.mu.Unlock()

	for ip, client := range buckets.clients {
		if now.Sub(client.lastSeen) > ttl {
			delete(buckets.clients, ip)
		}
	}
}

// retryAfterSeconds is the time for one token to refill, rounded up.
func (buckets *ipBuckets) retryAfterSeconds() int {
	if buckets.perSec <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(buckets.perSec))))
}

/*
RateLimit limits requests per client IP with a token bucket.

It is mounted globally with generous limits and again, much tighter, in front
of the /auth routes. Idle clients are swept until context is cancelled.

Parameters:
  - context: stops the sweeper goroutine
  - requestsPerSecond: refill rate
  - burst: bucket size
*/
func RateLimit(context context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	buckets := newIPBuckets(requestsPerSecond, burst)

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				buckets.sweep(now, constants.RateLimitClientTTL)
			case <-context.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !buckets.allow(RealIP(request), time.Now()) {
				retryAfter := buckets.retryAfterSeconds()
				writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
				respond.Error(writer, request, apperr.RateLimited(retryAfter))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
