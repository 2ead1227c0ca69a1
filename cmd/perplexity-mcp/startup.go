package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/basket/perplexity-mcp/internal/telemetry"
)

// fatalStartup records a startup failure and exits 1. Before the file logger
// exists (logger == nil) the record goes to stderr in the same JSON shape.
func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	if logger == nil {
		logger = stderrLogger(os.Stderr)
	}
	logStartupFailure(logger, reasonCode, err)
	os.Exit(1)
}

// startupError is a startup failure that serve has already logged.
type startupError struct {
	Code string
	Err  error
}

func (e *startupError) Error() string { return e.Code + ": " + e.Err.Error() }
func (e *startupError) Unwrap() error { return e.Err }

// startupFailure logs the failure like fatalStartup but returns instead of
// exiting, so the caller's deferred cleanup still runs.
func startupFailure(logger *slog.Logger, reasonCode string, err error) error {
	if logger == nil {
		logger = stderrLogger(os.Stderr)
	}
	logStartupFailure(logger, reasonCode, err)
	return &startupError{Code: reasonCode, Err: err}
}

func stderrLogger(w io.Writer) *slog.Logger {
	return slog.New(telemetry.NewHandler(w, slog.LevelInfo)).With("component", "perplexity-mcp")
}

func logStartupFailure(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	logger.Error("startup failure", "reason_code", reasonCode, "error", message)
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}

// portOccupantHint names the process holding addr's port when lsof can tell.
func portOccupantHint(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("Another process is using %s. Stop it first or pass a different -http address.", addr)
	}
	if pids := portPIDs(port); len(pids) > 0 {
		joined := strings.Join(pids, " ")
		return fmt.Sprintf("Port %s is occupied by PID %s. Kill it with: kill %s", port, joined, joined)
	}
	return fmt.Sprintf("Port %s is already in use. Stop the existing process or pass a different -http address.", port)
}

func portPIDs(port string) []string {
	out, err := execCommandFunc("lsof", "-ti", ":"+port).Output()
	if err != nil {
		return nil
	}
	return strings.Fields(string(out))
}

var execCommandFunc = exec.Command
