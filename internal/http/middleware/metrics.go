package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-payments/internal/metrics"
)

// HTTPMetrics пишет длительность запроса по шаблону маршрута, а не по сырому пути.
func HTTPMetrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
