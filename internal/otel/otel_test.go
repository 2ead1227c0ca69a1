package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("expected no-op tracer and meter")
	}
	if p.TracerProvider != nil {
		t.Fatal("disabled telemetry should not build an SDK tracer provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInit_Exporters(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "none", cfg: Config{Enabled: true, Exporter: ExporterNone}},
		{name: "stdout", cfg: Config{Enabled: true, Exporter: ExporterStdout}},
		{name: "otlp host port", cfg: Config{Enabled: true, Exporter: ExporterOTLPHTTP, Endpoint: "127.0.0.1:4318"}},
		{name: "otlp url", cfg: Config{Enabled: true, Exporter: ExporterOTLPHTTP, Endpoint: "https://collector.example.com/v1/traces"}},
		{name: "unknown", cfg: Config{Enabled: true, Exporter: "carrier-pigeon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Init(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			if p.TracerProvider == nil || p.Tracer == nil || p.Meter == nil {
				t.Fatalf("incomplete provider %+v", p)
			}
			if err := p.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}
		})
	}
}

func TestInit_ResourceAttributes(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	t.Cleanup(func() { Version = old })

	for _, tt := range []struct {
		service string
		want    string
	}{
		{"", defaultServiceName},
		{"search-edge", "search-edge"},
	} {
		p, err := Init(context.Background(), Config{Enabled: true, Exporter: ExporterNone, ServiceName: tt.service})
		if err != nil {
			t.Fatalf("Init: %v", err)
		}
		sr := tracetest.NewSpanRecorder()
		p.TracerProvider.RegisterSpanProcessor(sr)

		_, span := p.Tracer.Start(context.Background(), "test.span")
		span.End()

		ended := sr.Ended()
		if len(ended) != 1 {
			t.Fatalf("expected 1 span, got %d", len(ended))
		}
		attrs := make(map[attribute.Key]string)
		for _, kv := range ended[0].Resource().Attributes() {
			attrs[kv.Key] = kv.Value.Emit()
		}
		if attrs["service.name"] != tt.want {
			t.Errorf("service.name = %q, want %q", attrs["service.name"], tt.want)
		}
		if attrs["perplexity_mcp.version"] != "v9.9.9" {
			t.Errorf("version attribute = %q", attrs["perplexity_mcp.version"])
		}
		_ = p.Shutdown(context.Background())
	}
}

func TestSampleRate(t *testing.T) {
	for in, want := range map[float64]float64{0: 1, -1: 1, 0.25: 0.25, 1: 1, 3: 1} {
		if got := sampleRate(in); got != want {
			t.Errorf("sampleRate(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestOTLPEndpointOptions(t *testing.T) {
	if n := len(otlpEndpointOptions("")); n != 2 {
		t.Errorf("host:port default should set endpoint and insecure, got %d options", n)
	}
	if n := len(otlpEndpointOptions("https://collector.example.com/v1/traces")); n != 1 {
		t.Errorf("URL endpoint should be a single option, got %d", n)
	}
}
