package tools

// SearchToolName is the only capability this server exposes.
const SearchToolName = "perplexity_search"

const searchToolDescription = "Search the web using the Perplexity Search API. " +
	"Returns ranked results with titles, URLs, snippets and publication dates. " +
	"Pass a single query, or a list of up to 5 queries to search them as one batch."

// Capability describes a callable tool as advertised through discovery.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Descriptor returns the perplexity_search capability. Each call builds a new
// value, so callers cannot mutate the shared definition.
func Descriptor() Capability {
	return Capability{
		Name:        SearchToolName,
		Description: searchToolDescription,
		InputSchema: Document(),
	}
}

// Capabilities is the discovery listing: exactly one descriptor.
func Capabilities() []Capability {
	return []Capability{Descriptor()}
}
