package tools

import "context"

// SearchProvider is the backend a Dispatcher forwards validated searches to.
// Available reports provider-specific readiness (e.g. API key present).
type SearchProvider interface {
	Name() string      // e.g. "perplexity_search"
	Domains() []string // Hosts the provider talks to
	APIKeyReqs() []APIKeyReq
	Available() bool
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// APIKeyReq describes a credential a provider needs.
type APIKeyReq struct {
	EnvVar      string // e.g. "PERPLEXITY_API_KEY"
	Description string
	SignupURL   string
}
