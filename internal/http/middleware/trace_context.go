package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/cvetrack-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	maxClientIDLen = 128
)

// clientID accepts a caller-supplied id only when it is short and printable.
func clientID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxClientIDLen {
		return ""
	}
	for _, r := range raw {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return raw
}

// AttachTraceContext stores trace and request ids on the request context and echoes
// them as response headers. An active OTel span wins over the X-Trace-Id header.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := clientID(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}

		var traceID string
		if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
			traceID = spanCtx.TraceID().String()
		}
		if traceID == "" {
			traceID = clientID(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = reqID
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
