package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basket/perplexity-mcp/internal/shared"
)

func readEntries(t *testing.T, home string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(home, "logs", "system.jsonl"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unmarshal log json %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_EmitsStructuredSchema(t *testing.T) {
	home := t.TempDir()
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger, closer, err := NewLogger(home, lvl, true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Info("startup phase", "phase", "config_loaded", "tool", "perplexity_search")

	entries := readEntries(t, home)
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d", len(entries))
	}
	entry := entries[0]
	for _, key := range []string{"timestamp", "level", "msg", "component", "trace_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing required key %q in log entry: %#v", key, entry)
		}
	}
	if entry["component"] != "perplexity-mcp" {
		t.Fatalf("expected component=perplexity-mcp, got %#v", entry["component"])
	}
	if entry["trace_id"] != "-" {
		t.Fatalf("expected trace_id='-', got %#v", entry["trace_id"])
	}
	if entry["tool"] != "perplexity_search" {
		t.Fatalf("expected tool propagation, got %#v", entry["tool"])
	}
}

func TestNewLogger_TraceIDFromContext(t *testing.T) {
	home := t.TempDir()
	logger, closer, err := NewLogger(home, new(slog.LevelVar), true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	ctx := shared.WithTraceID(context.Background(), "trace-123")
	ctx = shared.WithToolName(ctx, "perplexity_search")
	logger.InfoContext(ctx, "tool call completed")
	logger.Info("outside invocation")

	entries := readEntries(t, home)
	if entries[0]["trace_id"] != "trace-123" {
		t.Fatalf("expected trace id from context, got %#v", entries[0]["trace_id"])
	}
	if entries[0]["tool"] != "perplexity_search" {
		t.Fatalf("expected tool from context, got %#v", entries[0]["tool"])
	}
	if _, ok := entries[1]["tool"]; ok {
		t.Fatalf("tool should be absent outside an invocation: %#v", entries[1])
	}
}

func TestNewLogger_RedactsSensitiveFields(t *testing.T) {
	home := t.TempDir()
	logger, closer, err := NewLogger(home, new(slog.LevelVar), true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Info("security check",
		"api_key", "abc123",
		"auth_header", "Authorization: Bearer super-secret-token",
		"error", "request with pplx-ABCDEFGHIJKLMNOPQRSTUVWX failed",
	)

	entries := readEntries(t, home)
	entry := entries[len(entries)-1]
	if entry["api_key"] != "[REDACTED]" {
		t.Fatalf("expected api_key redaction, got %#v", entry["api_key"])
	}
	if entry["auth_header"] != "[REDACTED]" {
		t.Fatalf("expected auth_header redaction, got %#v", entry["auth_header"])
	}
	if msg, _ := entry["error"].(string); strings.Contains(msg, "pplx-ABCDEFGHIJKLMNOPQRSTUVWX") {
		t.Fatalf("expected key redaction in value, got %q", msg)
	}
}

func TestNewHandler_KeepsVariableNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Error("startup failure",
		"error", "PERPLEXITY_API_KEY environment variable is required",
		"leak", "api_key=abcdefghijklmnopqrstuvwxyz",
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["error"] != "PERPLEXITY_API_KEY environment variable is required" {
		t.Errorf("diagnostic was redacted: %#v", entry["error"])
	}
	if entry["leak"] != "api_key=[REDACTED]" {
		t.Errorf("expected embedded key redacted, got %#v", entry["leak"])
	}
}

func TestNewLogger_LevelVarChangesAtRuntime(t *testing.T) {
	home := t.TempDir()
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger, closer, err := NewLogger(home, lvl, true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	lvl.Set(slog.LevelInfo)
	logger.Info("visible")

	entries := readEntries(t, home)
	if len(entries) != 1 || entries[0]["msg"] != "visible" {
		t.Fatalf("expected only the post-change line, got %v", entries)
	}
}

func TestNewHandler_DefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil))
	logger.Debug("dropped")
	logger.Info("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
