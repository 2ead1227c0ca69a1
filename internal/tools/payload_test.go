package tools

import (
	"encoding/json"
	"testing"
)

func payloadKeys(t *testing.T, req SearchRequest) map[string]json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestBuildRequest_OmitsAbsentOptionals(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{name: "absent", params: Params{Query: SingleQuery("q"), MaxResults: 10, MaxTokensPerPage: 1024}},
		{name: "empty", params: Params{Query: SingleQuery("q"), MaxResults: 10, MaxTokensPerPage: 1024, Country: "", DomainFilter: []string{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := payloadKeys(t, BuildRequest(tc.params))
			for _, key := range []string{"query", "max_results", "max_tokens_per_page"} {
				if _, ok := m[key]; !ok {
					t.Errorf("missing required key %q in %v", key, m)
				}
			}
			for _, key := range []string{"country", "search_domain_filter"} {
				if _, ok := m[key]; ok {
					t.Errorf("unexpected key %q in %v", key, m)
				}
			}
		})
	}
}

func TestBuildRequest_PassesValuesThrough(t *testing.T) {
	p := Params{
		Query:            BatchQuery("  Rust vs Go ", "zig"),
		MaxResults:       3,
		MaxTokensPerPage: 2048,
		Country:          "gb",
		DomainFilter:     []string{"go.dev"},
	}
	raw, err := json.Marshal(BuildRequest(p))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"query":["  Rust vs Go ","zig"],"max_results":3,"max_tokens_per_page":2048,"country":"gb","search_domain_filter":["go.dev"]}`
	if string(raw) != want {
		t.Fatalf("payload mismatch\n got: %s\nwant: %s", raw, want)
	}
}

func TestBuildRequest_SingleQueryIsString(t *testing.T) {
	m := payloadKeys(t, BuildRequest(Params{Query: SingleQuery("hello"), MaxResults: 10, MaxTokensPerPage: 1024}))
	if string(m["query"]) != `"hello"` {
		t.Fatalf("expected string query, got %s", m["query"])
	}
}

func TestBuildRequest_DoesNotAliasDomainFilter(t *testing.T) {
	filter := []string{"a.com"}
	req := BuildRequest(Params{Query: SingleQuery("q"), DomainFilter: filter})
	filter[0] = "b.com"
	if req.SearchDomainFilter[0] != "a.com" {
		t.Fatalf("request shares the params slice")
	}
}
