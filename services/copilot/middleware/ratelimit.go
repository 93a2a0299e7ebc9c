// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter enforces per-route, per-identity request budgets.
//
// Each (route, identity) pair gets its own token bucket. Buckets idle past
// the eviction window are dropped to bound memory. Unauthenticated requests
// fall back to the client IP as identity.
//
// # Thread Safety
//
// Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit rate.Limit
	burst int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketEvictionWindow = 10 * time.Minute

// NewRateLimiter builds a limiter allowing perMinute requests with the
// given burst per (route, identity) pair.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

// Middleware returns the gin handler enforcing the limit. Rejected requests
// get 429 rate_limited.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := OwnerID(c)
		if identity == "" {
			identity = c.ClientIP()
		}
		if !rl.allow(c.FullPath(), identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(route, identity string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	key := route + "|" + identity
	b, ok := rl.buckets[key]
	if !ok {
		rl.evictStale(now)
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// evictStale runs under rl.mu on the bucket-creation path only, keeping the
// steady-state hot path map-lookup cheap.
func (rl *RateLimiter) evictStale(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketEvictionWindow {
			delete(rl.buckets, key)
		}
	}
}
