package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/service"
)

const unmatchedRoute = "unmatched"

var opsRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics observes request latency and status per route template. Ops
// endpoints are skipped and unknown paths share one label to bound cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := opsRoutes[route]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
