package ratelimit

import (
	"github.com/gin-gonic/gin"

	"github.com/groupward/contrib-engine/internal/errors"
)

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			appErr := errors.NewRateLimitError("60")
			c.Header("Retry-After", "60")
			errors.LogError(c, appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"error":    appErr.ErrBuilder.Msg,
				"category": appErr.Category,
			})
			return
		}
		c.Next()
	}
}
