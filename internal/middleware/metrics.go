package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-query-api/internal/service"
)

// ContextStrategyKey holds the filter strategy resolved by a student filter handler.
const ContextStrategyKey = "filter_strategy"

// Metrics records HTTP metrics per route pattern and, for requests that resolved a
// filter strategy, a per-strategy request count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, time.Since(start))

		if strategy := c.GetString(ContextStrategyKey); strategy != "" {
			metricsSvc.ObserveFilterRequest(path, strategy, status)
		}
	}
}
