// Command runtime_smoke drives a running perplexity-mcp server through the
// MCP handshake, discovery and the error paths of perplexity_search.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const toolName = "perplexity_search"

func main() {
	url := flag.String("url", "", "streamable HTTP endpoint; empty launches -cmd over stdio")
	command := flag.String("cmd", "perplexity-mcp", "server binary to launch over stdio")
	query := flag.String("query", "", "optional live query; requires a valid PERPLEXITY_API_KEY")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var transport mcp.Transport
	if strings.TrimSpace(*url) != "" {
		transport = &mcp.StreamableClientTransport{Endpoint: strings.TrimSpace(*url)}
	} else {
		transport = &mcp.CommandTransport{Command: exec.Command(*command)}
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "runtime-smoke", Version: "v1"}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		fatal("connect", err)
	}
	defer cs.Close()
	fmt.Println("CHECK initialize ok")

	list, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		fatal("tools/list", err)
	}
	if err := checkDiscovery(list.Tools); err != nil {
		fatal("tools/list", err)
	}
	fmt.Println("CHECK discovery ok")

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: map[string]any{"query": "smoke", "max_results": 0},
	})
	if err != nil {
		fatal("tools/call invalid", err)
	}
	if err := expectToolError(res, "max_results"); err != nil {
		fatal("tools/call invalid", err)
	}
	fmt.Println("CHECK validation ok")

	if _, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "no_such_tool"}); err == nil {
		fatalf("tools/call unknown: expected protocol error")
	}
	fmt.Println("CHECK unknown tool ok")

	if strings.TrimSpace(*query) == "" {
		return
	}
	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: map[string]any{"query": *query, "max_results": 3},
	})
	if err != nil {
		fatal("tools/call live", err)
	}
	text := firstText(res)
	if res.IsError {
		fatalf("tools/call live: %s", text)
	}
	if !strings.HasPrefix(text, "# Search Results for:") {
		fatalf("tools/call live: unexpected output %q", text)
	}
	fmt.Printf("CHECK live search ok (%d bytes)\n", len(text))
}

// checkDiscovery verifies the advertised tool list describes perplexity_search.
func checkDiscovery(tools []*mcp.Tool) error {
	for _, t := range tools {
		if t.Name != toolName {
			continue
		}
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return err
		}
		var schema struct {
			Type     string   `json:"type"`
			Required []string `json:"required"`
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return err
		}
		if schema.Type != "object" {
			return fmt.Errorf("input schema type %q, want object", schema.Type)
		}
		if len(schema.Required) != 1 || schema.Required[0] != "query" {
			return fmt.Errorf("required fields %v, want [query]", schema.Required)
		}
		return nil
	}
	return fmt.Errorf("%s not advertised", toolName)
}

func expectToolError(res *mcp.CallToolResult, mention string) error {
	if res == nil {
		return errors.New("nil result")
	}
	if !res.IsError {
		return errors.New("expected isError result")
	}
	if text := firstText(res); !strings.Contains(text, mention) {
		return fmt.Errorf("error text %q does not mention %q", text, mention)
	}
	return nil
}

func firstText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
