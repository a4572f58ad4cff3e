package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/spml-provisioner/internal/service"
)

// unmatchedRoute labels requests gin could not route, so probing clients do not grow label sets.
const unmatchedRoute = "unmatched"

// Metrics observes every routed request except the listed scrape paths.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
