// auth.go issues short-lived admin tokens.
//
// Operators exchange the long-lived admin key for a JWT once and hand the
// JWT to tools that trigger syncs, so the key itself never leaves the box.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// IssueToken exchanges the admin key for an admin JWT.
// POST /api/auth/token
//
// Header: X-Admin-Key: <ADMIN_TOKEN>
// Response: {"token": "...", "expires_at": "..."}
func (h *Handler) IssueToken(c *gin.Context) {
	admin := h.opts.Admin
	if admin.JWTSecret == "" {
		errorJSON(c, http.StatusNotFound, "not_configured", "Token issuing is not configured")
		return
	}

	key := c.GetHeader(middleware.HeaderAdminKey)
	if key == "" {
		errorJSON(c, http.StatusUnauthorized, "unauthorized", "Missing X-Admin-Key header")
		return
	}
	if !admin.VerifyKey(key) {
		log.Printf("⚠️  Rejected admin token request from %s", c.ClientIP())
		errorJSON(c, http.StatusForbidden, "forbidden", "Invalid admin key")
		return
	}

	token, expiresAt, err := middleware.GenerateAdminJWT(admin.JWTSecret, h.opts.JWTTTL)
	if err != nil {
		log.Printf("❌ Failed to sign admin token: %v", err)
		errorJSON(c, http.StatusInternalServerError, "token_error", "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{Token: token, ExpiresAt: expiresAt})
}
