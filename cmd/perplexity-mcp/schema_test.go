package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRunSchemaCommand(t *testing.T) {
	var buf bytes.Buffer
	if code := runSchemaCommand(&buf); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	var caps []struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(buf.Bytes(), &caps); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(caps) != 1 || caps[0].Name != "perplexity_search" {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
	if caps[0].InputSchema["type"] != "object" {
		t.Fatalf("unexpected schema %v", caps[0].InputSchema)
	}
}
