package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds the search server's metric instruments.
type Metrics struct {
	ToolCallDuration metric.Float64Histogram
	ToolCallErrors   metric.Int64Counter
	ProviderDuration metric.Float64Histogram
	SearchResults    metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ToolCallDuration, err = meter.Float64Histogram("perplexity_mcp.tool.duration",
		metric.WithDescription("Tool invocation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallErrors, err = meter.Int64Counter("perplexity_mcp.tool.errors",
		metric.WithDescription("Tool invocation error count by error kind"),
	)
	if err != nil {
		return nil, err
	}

	m.ProviderDuration, err = meter.Float64Histogram("perplexity_mcp.provider.duration",
		metric.WithDescription("Search API call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.SearchResults, err = meter.Int64Counter("perplexity_mcp.search.results",
		metric.WithDescription("Total search results rendered"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
