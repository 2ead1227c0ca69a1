package tools

// SearchRequest is the JSON body sent to the Perplexity Search API.
type SearchRequest struct {
	Query              Query    `json:"query"`
	MaxResults         int      `json:"max_results"`
	MaxTokensPerPage   int      `json:"max_tokens_per_page"`
	Country            string   `json:"country,omitempty"`
	SearchDomainFilter []string `json:"search_domain_filter,omitempty"`
}

// BuildRequest maps validated params onto the provider payload. Values are
// passed through untouched; optional fields are left out when empty.
func BuildRequest(p Params) SearchRequest {
	req := SearchRequest{
		Query:            p.Query,
		MaxResults:       p.MaxResults,
		MaxTokensPerPage: p.MaxTokensPerPage,
	}
	if p.Country != "" {
		req.Country = p.Country
	}
	if len(p.DomainFilter) > 0 {
		req.SearchDomainFilter = append([]string(nil), p.DomainFilter...)
	}
	return req
}
