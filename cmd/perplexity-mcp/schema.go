package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/basket/perplexity-mcp/internal/tools"
)

func runSchemaCommand(w io.Writer) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tools.Capabilities()); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding json: %v\n", err)
		return 1
	}
	return 0
}
