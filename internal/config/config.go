package config

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/basket/perplexity-mcp/internal/otel"
	"github.com/basket/perplexity-mcp/internal/tools"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv names the only place the search credential is read from.
const APIKeyEnv = "PERPLEXITY_API_KEY"

type Config struct {
	HomeDir string `yaml:"-"`

	// Endpoint is the Search API URL. Empty uses the public endpoint.
	Endpoint string `yaml:"endpoint"`
	LogLevel string `yaml:"log_level"`

	// HTTPAddr, when set, serves streamable HTTP instead of stdio.
	HTTPAddr string `yaml:"http_addr"`

	Telemetry otel.Config `yaml:"telemetry"`
}

// APIKey returns the search credential from the environment.
func (c Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// LogDir returns the directory the JSON log is written to.
func LogDir(homeDir string) string {
	return filepath.Join(homeDir, "logs")
}

// Fingerprint returns a stable hash of the effective non-secret config.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "endpoint=%s|log=%s|http=%s|otel=%t/%s/%s/%g",
		c.Endpoint, c.LogLevel, c.HTTPAddr,
		c.Telemetry.Enabled, c.Telemetry.Exporter, c.Telemetry.Endpoint, c.Telemetry.SampleRate)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

func defaultConfig() Config {
	return Config{
		Endpoint: tools.DefaultSearchEndpoint,
		LogLevel: "info",
		Telemetry: otel.Config{
			Exporter:    otel.ExporterNone,
			ServiceName: "perplexity-mcp",
			SampleRate:  1.0,
		},
	}
}

func HomeDir() string {
	if override := os.Getenv("PERPLEXITY_MCP_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".perplexity-mcp")
}

// Load reads config.yaml from HomeDir, applies env overrides and fills
// defaults. A missing file is not an error.
func Load() (Config, error) {
	return LoadFrom(HomeDir())
}

func LoadFrom(homeDir string) (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = homeDir

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create perplexity-mcp home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = tools.DefaultSearchEndpoint
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Telemetry.Exporter = strings.ToLower(strings.TrimSpace(cfg.Telemetry.Exporter))
	if cfg.Telemetry.Exporter == "" {
		cfg.Telemetry.Exporter = otel.ExporterNone
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "perplexity-mcp"
	}
	if cfg.Telemetry.SampleRate <= 0 || cfg.Telemetry.SampleRate > 1 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func validate(cfg Config) error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q: must be an absolute http(s) URL", cfg.Endpoint)
	}
	switch cfg.Telemetry.Exporter {
	case otel.ExporterNone, otel.ExporterStdout, otel.ExporterOTLPHTTP:
	default:
		return fmt.Errorf("telemetry.exporter %q: must be one of none, stdout, otlp-http", cfg.Telemetry.Exporter)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if raw := os.Getenv("PERPLEXITY_SEARCH_URL"); raw != "" {
		cfg.Endpoint = raw
	}
	if raw := os.Getenv("PERPLEXITY_MCP_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("PERPLEXITY_MCP_HTTP_ADDR"); raw != "" {
		cfg.HTTPAddr = raw
	}
	if raw := os.Getenv("PERPLEXITY_MCP_OTEL_ENABLED"); raw != "" {
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return fmt.Errorf("PERPLEXITY_MCP_OTEL_ENABLED: %w", err)
		}
		cfg.Telemetry.Enabled = v
	}
	if raw := os.Getenv("PERPLEXITY_MCP_OTEL_EXPORTER"); raw != "" {
		cfg.Telemetry.Exporter = raw
	}
	if raw := os.Getenv("PERPLEXITY_MCP_OTEL_SAMPLE_RATE"); raw != "" {
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("PERPLEXITY_MCP_OTEL_SAMPLE_RATE: %w", err)
		}
		cfg.Telemetry.SampleRate = v
	}
	return nil
}
