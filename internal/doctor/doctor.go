package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/basket/perplexity-mcp/internal/config"
	"github.com/basket/perplexity-mcp/internal/shared"
	"github.com/basket/perplexity-mcp/internal/tools"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "PASS", "FAIL", "WARN", "SKIP"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// Failed reports whether any check failed.
func (d Diagnosis) Failed() bool {
	for _, r := range d.Results {
		if r.Status == "FAIL" {
			return true
		}
	}
	return false
}

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkConfig,
		checkAPIKey,
		checkEnvironment,
		checkEndpoint,
		checkNetwork,
		checkLogDir,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

func checkConfig(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: "Configuration not loaded"}
	}
	path := config.ConfigPath(cfg.HomeDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{Name: "Config", Status: "PASS", Message: "Using defaults (no config.yaml)", Detail: path}
	}
	return CheckResult{Name: "Config", Status: "PASS", Message: fmt.Sprintf("Loaded from %s", path), Detail: cfg.Fingerprint()}
}

func checkAPIKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "API Key", Status: "SKIP", Message: "Config missing"}
	}
	if cfg.APIKey() != "" {
		return CheckResult{Name: "API Key", Status: "PASS", Message: fmt.Sprintf("%s is set", config.APIKeyEnv)}
	}
	var hints []string
	for _, req := range tools.NewPerplexityProvider("").APIKeyReqs() {
		hints = append(hints, fmt.Sprintf("%s: create one at %s and export it or add it to .env", req.Description, req.SignupURL))
	}
	return CheckResult{
		Name:    "API Key",
		Status:  "FAIL",
		Message: fmt.Sprintf("%s not set", config.APIKeyEnv),
		Detail:  strings.Join(hints, "; "),
	}
}

// checkEnvironment lists the PERPLEXITY_* variables in effect. Secret values
// never reach the report.
func checkEnvironment(_ context.Context, _ *config.Config) CheckResult {
	var vars []string
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "PERPLEXITY_") {
			continue
		}
		vars = append(vars, key+"="+shared.RedactEnvValue(key, value))
	}
	if len(vars) == 0 {
		return CheckResult{Name: "Environment", Status: "PASS", Message: "No PERPLEXITY_* overrides"}
	}
	sort.Strings(vars)
	return CheckResult{
		Name:    "Environment",
		Status:  "PASS",
		Message: fmt.Sprintf("%d PERPLEXITY_* variables set", len(vars)),
		Detail:  strings.Join(vars, " "),
	}
}

func checkEndpoint(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Endpoint", Status: "SKIP", Message: "Config missing"}
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return CheckResult{Name: "Endpoint", Status: "FAIL", Message: fmt.Sprintf("Invalid endpoint %q", cfg.Endpoint)}
	}
	if u.Scheme == "http" {
		return CheckResult{Name: "Endpoint", Status: "WARN", Message: cfg.Endpoint, Detail: "Credential will be sent without TLS"}
	}
	return CheckResult{Name: "Endpoint", Status: "PASS", Message: cfg.Endpoint}
}

func checkNetwork(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Network", Status: "SKIP", Message: "Config missing"}
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Hostname() == "" {
		return CheckResult{Name: "Network", Status: "SKIP", Message: "Endpoint invalid"}
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(dialCtx, host)
	if err != nil {
		return CheckResult{
			Name:    "Network",
			Status:  "FAIL",
			Message: fmt.Sprintf("DNS lookup failed for %s: %v", host, err),
			Detail:  fmt.Sprintf("latency=%dms", time.Since(start).Milliseconds()),
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(host, port))
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Name:    "Network",
			Status:  "FAIL",
			Message: fmt.Sprintf("Cannot reach %s:%s: %v", host, port, err),
			Detail:  fmt.Sprintf("addresses=%v", addrs),
		}
	}
	conn.Close()

	return CheckResult{
		Name:    "Network",
		Status:  "PASS",
		Message: fmt.Sprintf("Reached %s:%s (%d addresses, %dms)", host, port, len(addrs), latency.Milliseconds()),
		Detail:  fmt.Sprintf("addresses=%v", addrs),
	}
}

func checkLogDir(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Log Directory", Status: "SKIP", Message: "Config missing"}
	}
	dir := config.LogDir(cfg.HomeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{Name: "Log Directory", Status: "FAIL", Message: fmt.Sprintf("Cannot create %s: %v", dir, err)}
	}
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Log Directory", Status: "FAIL", Message: fmt.Sprintf("Log dir unwritable: %v", err)}
	}
	os.Remove(testFile)

	return CheckResult{Name: "Log Directory", Status: "PASS", Message: fmt.Sprintf("%s writable", dir)}
}
