/*
Package tracing attaches a trace to every HTTP request.

Each request gets a span whose IDs are returned in the X-Trace-ID and X-Span-ID
response headers; clients may send those headers to continue a trace. Handlers read
the trace ID from the request context to correlate their own log lines, and finished
spans are logged by a buffered background collector.

# Usage

	tracer := tracing.New(logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	logger.Error("upload failed", tracing.Field(ctx), zap.Error(err))
*/
package tracing
