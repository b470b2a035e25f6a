// internal/middleware/webhook_ip_middleware.go
package middleware

import (
	"net/http"

	"fanpay-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookIPAllowList restricts a webhook route to the gateway's published
// source addresses. An empty list disables the check (development).
func WebhookIPAllowList(allowed []string, logger *zap.Logger) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, ip := range allowed {
		allowedSet[ip] = true
	}

	return func(c *gin.Context) {
		if len(allowedSet) == 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !allowedSet[ip] {
			logger.Warn("webhook request from unlisted address", zap.String("client_ip", ip))
			response.Error(c, http.StatusForbidden, "forbidden", nil)
			return
		}
		c.Next()
	}
}
