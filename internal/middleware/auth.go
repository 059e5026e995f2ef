// Package middleware provides HTTP middleware for the API.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing. This is similar to Express.js
// middleware, but with explicit control flow.
package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
// Go Pattern: Use unexported types for context keys so other packages
// can't accidentally overwrite your values.
type contextKey string

const authMethodContextKey contextKey = "auth_method"

// Ways a caller can be authorized for sync operations.
const (
	AuthUpstreamKey = "upstream_key"
	AuthAdminToken  = "admin_token"
	AuthAdminJWT    = "admin_jwt"
	AuthLoopback    = "loopback"
)

// Header names accepted by AdminAuth.
const (
	HeaderAPIKey   = "X-APIKEY"
	HeaderAdminKey = "X-Admin-Key"
)

// AdminCredentials holds everything AdminAuth can verify a caller against.
type AdminCredentials struct {
	Token       string // plaintext admin token, compared in constant time
	TokenBcrypt string // bcrypt hash alternative to Token
	JWTSecret   string
	// AllowLoopback lets requests from 127.0.0.1/::1 through without
	// credentials. Only meant for local development.
	AllowLoopback bool
}

// VerifyKey reports whether key matches the configured admin token or hash.
func (a AdminCredentials) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	if a.Token != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.Token)) == 1 {
		return true
	}
	if a.TokenBcrypt != "" && bcrypt.CompareHashAndPassword([]byte(a.TokenBcrypt), []byte(key)) == nil {
		return true
	}
	return false
}

// AdminAuth returns middleware guarding the sync routes.
//
// A request passes when any of these holds:
// 1. It carries an X-APIKEY header (the caller's own upstream key)
// 2. Its Bearer token is the admin token (or matches the bcrypt hash)
// 3. Its Bearer token is a valid admin JWT
// 4. Loopback is allowed and the client address is loopback
//
// Missing credentials get 401; credentials that fail verification get 403.
func AdminAuth(creds AdminCredentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(HeaderAPIKey)) != "" {
			setAuthMethod(c, AuthUpstreamKey)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if creds.VerifyKey(token) {
				setAuthMethod(c, AuthAdminToken)
				c.Next()
				return
			}
			if creds.JWTSecret != "" {
				if _, err := ParseAdminJWT(token, creds.JWTSecret); err == nil {
					setAuthMethod(c, AuthAdminJWT)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "forbidden",
				Message: "Invalid or expired admin credentials",
				Code:    http.StatusForbidden,
			})
			c.Abort()
			return
		}

		if creds.AllowLoopback && isLoopback(c.ClientIP()) {
			setAuthMethod(c, AuthLoopback)
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Provide an X-APIKEY header or Authorization: Bearer <admin token>",
			Code:    http.StatusUnauthorized,
		})
		c.Abort()
	}
}

// GetAuthMethod returns how the current request was authorized, or "".
func GetAuthMethod(c *gin.Context) string {
	val, exists := c.Get(string(authMethodContextKey))
	if !exists {
		return ""
	}
	// Go Pattern: Type assertion with the comma-ok idiom won't panic.
	method, _ := val.(string)
	return method
}

func setAuthMethod(c *gin.Context, method string) {
	c.Set(string(authMethodContextKey), method)
}

func isLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
