package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/basket/perplexity-mcp/internal/config"
	"github.com/basket/perplexity-mcp/internal/otel"
	"github.com/basket/perplexity-mcp/internal/tools"
	"github.com/joho/godotenv"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1.0-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

SERVE (default):
  %s                          Serve the perplexity_search tool over stdio
  %s -http 127.0.0.1:8931     Serve over streamable HTTP instead

SUBCOMMANDS:
  %s doctor [-json]           Run diagnostic checks
  %s schema                   Print the tool descriptor as JSON
  %s version                  Print the version

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  PERPLEXITY_API_KEY          Required. Perplexity API key
  PERPLEXITY_MCP_HOME         Data directory (default: ~/.perplexity-mcp)
  PERPLEXITY_SEARCH_URL       Override the Search API endpoint
  PERPLEXITY_MCP_LOG_LEVEL    debug, info, warn or error
  PERPLEXITY_MCP_HTTP_ADDR    Same as -http
`)
}

func main() {
	loadDotEnv(".env")

	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio")
	quiet := flag.Bool("quiet", false, "write logs to the log file only")
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "version":
			fmt.Println(Version)
			os.Exit(0)
		case "schema":
			os.Exit(runSchemaCommand(os.Stdout))
		case "doctor":
			os.Exit(runDoctorCommand(ctx, args[1:]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	// The credential is checked before anything else so a misconfigured
	// client sees the failure immediately.
	apiKey := strings.TrimSpace(os.Getenv(config.APIKeyEnv))
	if apiKey == "" {
		fatalStartup(nil, "E_API_KEY_MISSING", errors.New("PERPLEXITY_API_KEY environment variable is required"))
	}

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	otel.Version = Version
	tools.UserAgent = "perplexity-mcp/" + Version

	if err := serve(ctx, cfg, apiKey, *quiet); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding variables
// already set in the environment. A missing file is ignored.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring %s: %v\n", path, err)
	}
}
