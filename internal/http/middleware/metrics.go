package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cvetrack-backend/internal/observability"
)

// Metrics instruments HTTP request counts/latency when metrics are enabled.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.IncInflight()
		defer m.DecInflight()

		c.Next()

		m.ObserveAPI(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
