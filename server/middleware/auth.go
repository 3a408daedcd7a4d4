package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware guards the admin surface with a static API key. Camera
// ingest and the event stream stay open; config and baseline mutation do
// not.
type AuthMiddleware struct {
	apiKey string
	logger *zap.Logger
}

func NewAuthMiddleware(apiKey string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey: apiKey,
		logger: logger,
	}
}

// RequireAPIKey validates the X-API-Key header against the configured
// admin key. When no key is configured the admin surface is disabled
// entirely rather than left open.
func (a *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.apiKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Admin API is not configured",
				"code":  "ADMIN_DISABLED",
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.apiKey)) != 1 {
			a.logger.Warn("Admin request with invalid API key",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
				"code":  "INVALID_API_KEY",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
