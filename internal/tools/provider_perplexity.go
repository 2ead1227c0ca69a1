package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultSearchEndpoint is the Perplexity Search API.
const DefaultSearchEndpoint = "https://api.perplexity.ai/search"

const maxResponseBytes = 4 << 20

// UserAgent is sent with every search request. main overrides it with the
// build version.
var UserAgent = "perplexity-mcp"

// PerplexityProvider implements SearchProvider using the Perplexity Search API.
type PerplexityProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// PerplexityOption configures a PerplexityProvider.
type PerplexityOption func(*PerplexityProvider)

// WithEndpoint overrides the search endpoint URL.
func WithEndpoint(endpoint string) PerplexityOption {
	return func(p *PerplexityProvider) {
		if endpoint != "" {
			p.endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the HTTP client used for search requests.
func WithHTTPClient(c *http.Client) PerplexityOption {
	return func(p *PerplexityProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewPerplexityProvider creates a Perplexity search provider. The default
// client has no timeout of its own; the request context bounds each call.
func NewPerplexityProvider(apiKey string, opts ...PerplexityOption) *PerplexityProvider {
	p := &PerplexityProvider{
		apiKey:   apiKey,
		endpoint: DefaultSearchEndpoint,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PerplexityProvider) Name() string { return SearchToolName }
func (p *PerplexityProvider) Available() bool { return p.apiKey != "" }

// Endpoint returns the URL searches are posted to.
func (p *PerplexityProvider) Endpoint() string { return p.endpoint }

func (p *PerplexityProvider) Domains() []string {
	u, err := url.Parse(p.endpoint)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}

func (p *PerplexityProvider) APIKeyReqs() []APIKeyReq {
	return []APIKeyReq{
		{
			EnvVar:      "PERPLEXITY_API_KEY",
			Description: "Perplexity API key",
			SignupURL:   "https://www.perplexity.ai/settings/api",
		},
	}
}

// Result is one search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet,omitempty"`
	Date        string `json:"date,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// SearchResponse is the Search API answer. Results hold either Result
// objects (single query) or arrays of them (batch), so they stay raw until
// the formatter knows which mode the request used.
type SearchResponse struct {
	ID      string            `json:"id,omitempty"`
	Results []json.RawMessage `json:"results"`
}

// UnmarshalJSON accepts any well-formed body. A scalar id keeps its JSON
// text; results that are not an array, or a body that is not an object,
// leave the response empty.
func (r *SearchResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"id"`
		Results json.RawMessage `json:"results"`
	}
	*r = SearchResponse{}
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil
		}
		return err
	}
	r.ID = scalarText(raw.ID)
	var items []json.RawMessage
	if err := json.Unmarshal(raw.Results, &items); err == nil {
		r.Results = items
	}
	return nil
}

func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	switch v := strings.TrimSpace(string(raw)); {
	case v == "", v == "null", strings.HasPrefix(v, "{"), strings.HasPrefix(v, "["):
		return ""
	default:
		return v
	}
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Search performs exactly one POST to the Search API.
func (p *PerplexityProvider) Search(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	bodyBytes, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("marshal perplexity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: apiErrorMessage(resp.StatusCode, body)}
	}

	return parseSearchResponse(body)
}

// apiErrorMessage prefers the API's own error text over the HTTP status.
func apiErrorMessage(status int, body []byte) string {
	var eb apiErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	if status > 0 {
		return fmt.Sprintf("request failed with status code %d", status)
	}
	return unknownErrorMessage
}

func parseSearchResponse(data []byte) (*SearchResponse, error) {
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return &resp, nil
}
