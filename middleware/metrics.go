package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cv-evaluator/internal/telemetry"
)

// MetricsMiddleware records per-request count and latency metrics.
func MetricsMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
