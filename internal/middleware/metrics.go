package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/telemetry"
)

// noRouteLabel is the path label recorded for requests that matched no
// registered route. Using a fixed sentinel instead of the raw URL keeps
// unauthenticated path scans from inflating metric cardinality.
const noRouteLabel = "<no-route>"

// MetricsMiddleware records the request counter, latency histogram, and
// in-flight gauge defined in the telemetry package. The path label comes
// from c.FullPath(), the matched route template (for example
// /api/v1/principals/:id), never the raw URL.
//
// Register it after gin.Recovery and RequestIDMiddleware so the status
// written by recovery handlers is the one that gets counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.HTTPRequestsInFlight.Inc()
		start := time.Now()

		c.Next()

		telemetry.HTTPRequestsInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = noRouteLabel
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
