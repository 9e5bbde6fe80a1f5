package booking

import (
	"crypto/subtle"
	"net/http"

	"dealroom_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// ValidateToken compares the provided token against the configured secret in
// constant time. An unconfigured secret always fails (fail closed).
func ValidateToken(provided, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
}

// TokenAuthMiddleware authenticates provider webhooks with a shared token.
// The token is read from the X-Webhook-Token header, falling back to the
// "token" query parameter for providers that cannot set headers.
func TokenAuthMiddleware(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Webhook-Token")
		if token == "" {
			token = c.Query("token")
		}

		if !ValidateToken(token, cfg.GetBookingWebhookToken()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid webhook token",
			})
			return
		}

		c.Next()
	}
}
