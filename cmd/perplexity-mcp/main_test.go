package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "PERPLEXITY_MCP_TEST_NEW=from-file\nPERPLEXITY_MCP_TEST_SET=from-file\n# comment\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PERPLEXITY_MCP_TEST_SET", "from-env")
	t.Setenv("PERPLEXITY_MCP_TEST_NEW", "")
	os.Unsetenv("PERPLEXITY_MCP_TEST_NEW")

	loadDotEnv(path)

	if got := os.Getenv("PERPLEXITY_MCP_TEST_NEW"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("PERPLEXITY_MCP_TEST_SET"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	loadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
}

func TestIsAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, err = net.Listen("tcp", ln.Addr().String())
	if err == nil {
		t.Fatal("expected second listen to fail")
	}
	if !isAddrInUse(err) {
		t.Fatalf("expected address-in-use, got %v", err)
	}
	if isAddrInUse(errors.New("permission denied")) {
		t.Fatal("unrelated error reported as address-in-use")
	}
}

func TestPortOccupantHint(t *testing.T) {
	orig := execCommandFunc
	defer func() { execCommandFunc = orig }()

	execCommandFunc = func(string, ...string) *exec.Cmd {
		return exec.Command("echo", "4242 4243")
	}
	if got := portOccupantHint("127.0.0.1:8931"); !strings.Contains(got, "PID 4242 4243") {
		t.Errorf("expected PID in hint, got %q", got)
	}

	execCommandFunc = func(string, ...string) *exec.Cmd {
		return exec.Command("false")
	}
	if got := portOccupantHint("127.0.0.1:8931"); !strings.Contains(got, "Port 8931 is already in use") {
		t.Errorf("unexpected fallback hint %q", got)
	}
	if got := portOccupantHint("no-port"); !strings.Contains(got, "no-port") {
		t.Errorf("unexpected hint for bad addr %q", got)
	}
}

func TestLogStartupFailure_Shape(t *testing.T) {
	var buf bytes.Buffer
	logStartupFailure(stderrLogger(&buf), "E_API_KEY_MISSING", errors.New("PERPLEXITY_API_KEY environment variable is required"))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("startup failure is not one JSON line: %v\n%s", err, buf.String())
	}
	for key, want := range map[string]string{
		"level":       "ERROR",
		"msg":         "startup failure",
		"component":   "perplexity-mcp",
		"trace_id":    "-",
		"reason_code": "E_API_KEY_MISSING",
		"error":       "PERPLEXITY_API_KEY environment variable is required",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

// TestMissingAPIKeyExitsBeforeServing re-runs the test binary as the server
// process with no credential and checks it dies before speaking MCP.
func TestMissingAPIKeyExitsBeforeServing(t *testing.T) {
	if os.Getenv("PERPLEXITY_MCP_RUN_MAIN") == "1" {
		os.Args = []string{"perplexity-mcp"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestMissingAPIKeyExitsBeforeServing$")
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(),
		"PERPLEXITY_MCP_RUN_MAIN=1",
		"PERPLEXITY_API_KEY=",
		"PERPLEXITY_MCP_HOME="+t.TempDir(),
	)
	cmd.Stdin = strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}` + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), `"reason_code":"E_API_KEY_MISSING"`) {
		t.Errorf("missing startup failure record on stderr: %s", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing may be written to stdout before the credential check, got %q", stdout.String())
	}
}

func TestIsAddrInUse_Nil(t *testing.T) {
	if isAddrInUse(nil) {
		t.Fatal("nil error reported as address-in-use")
	}
}

func TestRunDoctorCommand_JSONOutput(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PERPLEXITY_MCP_HOME", home)
	t.Setenv("PERPLEXITY_API_KEY", "")
	t.Setenv("PERPLEXITY_SEARCH_URL", "")

	// No key: the API key check fails, so the exit code is 1.
	if code := runDoctorCommand(context.Background(), []string{"-json"}); code != 1 {
		t.Fatalf("got exit code %d, want 1 without API key", code)
	}
}

func TestRunDoctorCommand_BadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PERPLEXITY_MCP_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("endpoint: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := runDoctorCommand(context.Background(), nil); code != 1 {
		t.Fatalf("got exit code %d, want 1 for unreadable config", code)
	}
}
