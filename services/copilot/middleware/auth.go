// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides gin middleware for the copilot service:
// request correlation ids, bearer-token authentication, and per-identity
// rate limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by this package.
const (
	// OwnerIDKey holds the authenticated owner id.
	OwnerIDKey = "owner_id"

	// RequestIDKey holds the correlation id for the request.
	RequestIDKey = "request_id"
)

// ErrInvalidToken is returned by verifiers for unusable tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer token to an owner identity.
type TokenVerifier interface {
	Verify(token string) (ownerID string, err error)
}

// NopVerifier treats the bearer token itself as the owner identity.
//
// Suitable for local single-tenant deployments where an upstream proxy
// already terminated real authentication.
type NopVerifier struct{}

// Verify returns the token as the owner id.
func (NopVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// Auth authenticates requests with a Bearer token and stores the resolved
// owner id in the gin context. Missing or unverifiable tokens get 401.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthenticated(c)
			return
		}
		ownerID, err := verifier.Verify(token)
		if err != nil {
			abortUnauthenticated(c)
			return
		}
		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// OwnerID returns the authenticated owner id, or "" when unauthenticated.
func OwnerID(c *gin.Context) string {
	return c.GetString(OwnerIDKey)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "unauthenticated", "message": "missing or invalid bearer token"},
	})
}
