package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	noResultsLine = "No results found."
	rule          = "---"
)

// Format renders a search response as one Markdown block. The output depends
// only on its inputs.
func Format(p Params, resp *SearchResponse) string {
	if resp == nil {
		resp = &SearchResponse{}
	}
	var b strings.Builder
	if p.Query.IsBatch() {
		formatBatch(&b, p.Query.Texts(), BatchResults(resp, p.Query.Len()))
	} else {
		fmt.Fprintf(&b, "# Search Results for: \"%s\"\n\n", p.Query.Text())
		writeResults(&b, SingleResults(resp))
	}
	if resp.ID != "" {
		fmt.Fprintf(&b, "%s\n\n*Search ID: %s*\n", rule, resp.ID)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func formatBatch(b *strings.Builder, queries []string, results [][]Result) {
	fmt.Fprintf(b, "# Batch Search Results (%d queries)\n\n", len(queries))
	for i, q := range queries {
		if i > 0 {
			b.WriteString(rule + "\n\n")
		}
		fmt.Fprintf(b, "## Query %d: \"%s\"\n\n", i+1, q)
		writeResults(b, results[i])
	}
}

func writeResults(b *strings.Builder, results []Result) {
	if len(results) == 0 {
		b.WriteString(noResultsLine + "\n\n")
		return
	}
	for i, r := range results {
		writeResult(b, i+1, r)
	}
}

func writeResult(b *strings.Builder, n int, r Result) {
	title := r.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(b, "### %d. %s\n", n, title)
	fmt.Fprintf(b, "**URL:** %s\n", r.URL)
	if r.Snippet != "" {
		fmt.Fprintf(b, "**Snippet:**\n%s\n", r.Snippet)
	}
	if r.Date != "" {
		fmt.Fprintf(b, "**Published:** %s\n", r.Date)
	}
	if r.LastUpdated != "" {
		fmt.Fprintf(b, "**Last Updated:** %s\n", r.LastUpdated)
	}
	b.WriteString("\n")
}

// SingleResults decodes a single-query result list. Entries that are not
// result objects are skipped.
func SingleResults(resp *SearchResponse) []Result {
	if resp == nil {
		return nil
	}
	return decodeResults(resp.Results)
}

// BatchResults decodes a batch response into exactly n per-query lists.
// Positions the provider did not return are empty; extra positions are
// dropped.
func BatchResults(resp *SearchResponse, n int) [][]Result {
	out := make([][]Result, n)
	if resp == nil {
		return out
	}
	for i := 0; i < n && i < len(resp.Results); i++ {
		var group []json.RawMessage
		if err := json.Unmarshal(resp.Results[i], &group); err != nil {
			continue
		}
		out[i] = decodeResults(group)
	}
	return out
}

func decodeResults(raw []json.RawMessage) []Result {
	out := make([]Result, 0, len(raw))
	for _, item := range raw {
		if len(item) == 0 || string(item) == "null" {
			continue
		}
		var r Result
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}
