package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	otelPkg "github.com/basket/perplexity-mcp/internal/otel"
	"github.com/basket/perplexity-mcp/internal/shared"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Dispatcher runs one tool invocation end to end: validate, build the
// payload, call the provider, format. It holds no per-request state.
type Dispatcher struct {
	provider SearchProvider
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *otelPkg.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithMetrics(m *otelPkg.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(provider SearchProvider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(otelPkg.TracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities lists the tools this dispatcher accepts.
func (d *Dispatcher) Capabilities() []Capability {
	return Capabilities()
}

// Invoke handles one tool call. On failure the error is always an
// *InvocationError and the returned text is empty.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	start := time.Now()
	ctx = shared.WithToolName(shared.EnsureTraceID(ctx), name)
	ctx, span := otelPkg.StartServerSpan(ctx, d.tracer, "tools.invoke",
		otelPkg.AttrToolName.String(name),
		otelPkg.AttrTraceID.String(shared.TraceID(ctx)),
	)
	defer span.End()

	text, err := d.invoke(ctx, d.logger, name, args)

	elapsed := time.Since(start)
	attrs := metric.WithAttributes(otelPkg.AttrToolName.String(name))
	if err != nil {
		kind := ErrorKindOf(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(otelPkg.AttrErrorKind.String(string(kind)))
		if d.metrics != nil {
			d.metrics.ToolCallErrors.Add(ctx, 1, metric.WithAttributes(
				otelPkg.AttrToolName.String(name),
				otelPkg.AttrErrorKind.String(string(kind)),
			))
		}
		if kind == KindValidation || kind == KindUnknownCapability {
			d.logger.InfoContext(ctx, "tool call rejected", "kind", kind, "error", err, "duration_ms", elapsed.Milliseconds())
		} else {
			d.logger.WarnContext(ctx, "tool call failed", "kind", kind, "error", err, "duration_ms", elapsed.Milliseconds())
		}
	} else {
		d.logger.InfoContext(ctx, "tool call completed", "duration_ms", elapsed.Milliseconds(), "bytes", len(text))
	}
	if d.metrics != nil {
		d.metrics.ToolCallDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
	return text, err
}

func (d *Dispatcher) invoke(ctx context.Context, logger *slog.Logger, name string, args map[string]any) (string, error) {
	if name != SearchToolName {
		return "", unknownCapability(name)
	}

	_, vspan := otelPkg.StartSpan(ctx, d.tracer, "tools.validate")
	params, err := Validate(args)
	if err != nil {
		vspan.SetStatus(codes.Error, err.Error())
		vspan.End()
		return "", validationFailure(err)
	}
	vspan.End()
	logger.DebugContext(ctx, "search arguments accepted",
		"queries", params.Query.Len(),
		"batch", params.Query.IsBatch(),
		"max_results", params.MaxResults,
	)

	resp, err := d.search(ctx, BuildRequest(params))
	if err != nil {
		return "", providerFailure(err)
	}

	if params.Query.IsBatch() && len(resp.Results) != params.Query.Len() {
		logger.WarnContext(ctx, "batch result count does not match query count",
			"queries", params.Query.Len(), "result_groups", len(resp.Results))
	}

	text := Format(params, resp)
	if d.metrics != nil {
		d.metrics.SearchResults.Add(ctx, int64(countResults(params, resp)))
	}
	return text, nil
}

func (d *Dispatcher) search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ctx, span := otelPkg.StartClientSpan(ctx, d.tracer, "perplexity.search",
		otelPkg.AttrProviderName.String(d.provider.Name()),
		otelPkg.AttrQueryCount.Int(req.Query.Len()),
		otelPkg.AttrBatch.Bool(req.Query.IsBatch()),
	)
	defer span.End()

	start := time.Now()
	resp, err := d.provider.Search(ctx, req)
	if d.metrics != nil {
		d.metrics.ProviderDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			span.SetAttributes(otelPkg.AttrHTTPStatus.Int(pe.StatusCode))
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(otelPkg.AttrResultCount.Int(len(resp.Results)))
	return resp, nil
}

func countResults(p Params, resp *SearchResponse) int {
	if !p.Query.IsBatch() {
		return len(SingleResults(resp))
	}
	n := 0
	for _, group := range BatchResults(resp, p.Query.Len()) {
		n += len(group)
	}
	return n
}
