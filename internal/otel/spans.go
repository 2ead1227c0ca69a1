package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for perplexity-mcp spans and metrics.
var (
	AttrToolName     = attribute.Key("perplexity_mcp.tool.name")
	AttrTraceID      = attribute.Key("perplexity_mcp.trace_id")
	AttrQueryCount   = attribute.Key("perplexity_mcp.query.count")
	AttrBatch        = attribute.Key("perplexity_mcp.query.batch")
	AttrResultCount  = attribute.Key("perplexity_mcp.result.count")
	AttrErrorKind    = attribute.Key("error.kind")
	AttrHTTPStatus   = attribute.Key("http.response.status_code")
	AttrProviderName = attribute.Key("perplexity_mcp.provider")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan starts a span for an inbound tool invocation.
func StartServerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartClientSpan starts a span for an outbound search API call.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
