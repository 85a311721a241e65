package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-approval-api/internal/service"
)

// Metrics observes method, route template, status and latency for every
// request. Unmatched routes fall back to the raw path so 404 floods are
// still visible.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
