package monitoring

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records request counters, timing, and a structured
// access log line per request.
func MonitoringMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncrementRequests()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordStatus(status)
		if status >= 500 {
			metrics.IncrementErrors()
		}

		slog.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", float64(duration.Nanoseconds())/1e6,
			"client_ip", c.ClientIP(),
		)
	}
}
