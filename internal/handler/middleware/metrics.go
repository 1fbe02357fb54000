package middleware

import (
	"github.com/wb-go/wbf/ginext"
	"github.com/yokitheyo/backdrop/internal/metrics"
)

// MetricsMiddleware counts requests by route template, so path parameters
// do not blow up label cardinality.
func MetricsMiddleware(m *metrics.Metrics) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status())
	}
}
