package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"cellfinder/internal/metrics"

	"github.com/gin-gonic/gin"
)

// ContextKeyAdmin holds the authenticated principal in the gin context.
const ContextKeyAdmin = "admin"

// AdminAuthMiddleware requires a valid "Authorization: Bearer <token>" header.
// Every failure gets the same 401 body; the reason is only logged.
func AdminAuthMiddleware(service Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tok, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tok == "" {
			reject(c, "missing bearer token")
			return
		}

		claims, err := service.Verify(tok)
		if err != nil {
			reject(c, err.Error())
			return
		}

		c.Set(ContextKeyAdmin, claims.Principal)
		c.Next()
	}
}

func reject(c *gin.Context, reason string) {
	metrics.AdminRejectedTotal.Inc()
	slog.Warn("Admin request rejected",
		"reason", reason,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// Principal returns the admin stored by AdminAuthMiddleware, or "".
func Principal(c *gin.Context) string {
	return c.GetString(ContextKeyAdmin)
}
