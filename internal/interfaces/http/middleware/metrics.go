package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
)

// HTTPMetrics returns middleware that records request counts, latencies, and
// payload sizes. The route template (c.FullPath) is used as the path label so
// cardinality stays bounded; unmatched requests share one label.
func HTTPMetrics(metrics *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		start := time.Now()
		metrics.HTTPActiveRequests.WithLabelValues(method, path).Inc()

		c.Next()

		metrics.HTTPActiveRequests.WithLabelValues(method, path).Dec()

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		prometheus.RecordHTTPRequest(metrics,
			method, path, c.Writer.Status(),
			time.Since(start), reqSize, respSize)
	}
}
