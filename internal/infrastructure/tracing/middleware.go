package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/entityfs/internal/shared/id"
)

// HTTPMiddleware starts a span per request. Incoming X-Trace-ID and X-Span-ID headers
// continue an existing trace; the response always carries the trace and span IDs.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := c.GetHeader(TraceHeader); v != "" {
			ctx = context.WithValue(ctx, traceIDKey, id.TraceID(v))
		}
		if v := c.GetHeader(SpanHeader); v != "" {
			ctx = context.WithValue(ctx, spanIDKey, id.SpanID(v))
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.url", c.Request.URL.String())
		c.Request = c.Request.WithContext(ctx)

		c.Header(TraceHeader, span.TraceID.String())
		c.Header(SpanHeader, span.SpanID.String())

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
