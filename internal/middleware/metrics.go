package middleware

import (
	"time"

	"grid-keeper/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP request statistics middleware
 * @description
 * - Counts requests per route and records their duration
 * - Counts responses with a status >= 400 as errors
 * - Feeds the totals reported by /healthz
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		services.IncrementRequestCount(route)
		services.RecordRequestDuration(route, time.Since(start).Seconds())
		if c.Writer.Status() >= 400 {
			services.IncrementErrorCount(route)
		}
	}
}
