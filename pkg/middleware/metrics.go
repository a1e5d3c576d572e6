package middleware

import (
	"strconv"
	"time"

	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger records request duration in Prometheus and logs server errors.
func RequestLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)

		if status >= 500 {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
				zap.String("errors", c.Errors.String()),
			)
		}
	}
}
