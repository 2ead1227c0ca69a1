package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestTraceID_DefaultDash(t *testing.T) {
	ctx := context.Background()
	if got := TraceID(ctx); got != "-" {
		t.Fatalf("expected '-', got %q", got)
	}
	ctx = WithTraceID(ctx, "abc")
	if got := TraceID(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestNewTraceID_IsUUID(t *testing.T) {
	id := NewTraceID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
	if id == NewTraceID() {
		t.Fatal("expected distinct trace ids")
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	first := TraceID(ctx)
	if first == "-" {
		t.Fatal("expected a generated trace id")
	}
	if got := TraceID(EnsureTraceID(ctx)); got != first {
		t.Fatalf("expected existing trace id %q to be kept, got %q", first, got)
	}
}

func TestToolName_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := ToolName(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	ctx = WithToolName(ctx, "perplexity_search")
	if got := ToolName(ctx); got != "perplexity_search" {
		t.Fatalf("expected perplexity_search, got %q", got)
	}
}
