package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/01moynul/marzetti-backend/internal/auth"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// adminKey is the gin context key holding the authenticated *models.Admin.
const adminKey = "admin"

// LoginPath is where the admin web surface sends unauthenticated visitors.
const LoginPath = "/admin/login"

// AuthMiddleware guards the JSON API. It needs an
// "Authorization: Bearer <token>" header naming an existing admin and
// rejects everything else with 401.
func AuthMiddleware(sessions *auth.SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Resolve header to admin
		admin, err := sessions.FromHeader(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				slog.Error("session lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
			return
		}

		// 2. Success! Add admin to context and proceed.
		c.Set(adminKey, admin)
		c.Next()
	}
}

// AdminSession guards the HTML admin surface. A missing or unusable
// session cookie redirects to the login page instead of failing.
func AdminSession(sessions *auth.SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin := sessions.FromCookie(c.Request)
		if admin == nil {
			c.Redirect(http.StatusSeeOther, LoginPath)
			c.Abort()
			return
		}
		c.Set(adminKey, admin)
		c.Next()
	}
}

// CurrentAdmin returns the admin stored by AuthMiddleware or AdminSession.
func CurrentAdmin(c *gin.Context) (*models.Admin, bool) {
	v, ok := c.Get(adminKey)
	if !ok {
		return nil, false
	}
	admin, ok := v.(*models.Admin)
	return admin, ok && admin != nil
}
