package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/basket/perplexity-mcp/internal/config"
	"github.com/basket/perplexity-mcp/internal/doctor"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

func runDoctorCommand(ctx context.Context, args []string) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "-json" || arg == "--json" {
			jsonOutput = true
		}
	}

	var cfgPtr *config.Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	} else {
		cfgPtr = &cfg
	}

	diag := doctor.Run(ctx, cfgPtr, Version)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(diag); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding json: %v\n", err)
			return 1
		}
	} else {
		printDiagnosis(os.Stdout, diag, isatty.IsTerminal(os.Stdout.Fd()))
	}

	if diag.Failed() {
		return 1
	}
	return 0
}

func printDiagnosis(w io.Writer, diag doctor.Diagnosis, color bool) {
	plain := lipgloss.NewStyle()
	pass, fail, warn, dim, title := plain, plain, plain, plain, plain
	if color {
		pass = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		fail = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		warn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
		dim = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	}

	fmt.Fprintln(w, title.Render(fmt.Sprintf("perplexity-mcp doctor (%s)", diag.Timestamp.Format(time.RFC3339))))
	fmt.Fprintf(w, "System: %s/%s (%s) version %s\n", diag.System.OS, diag.System.Arch, diag.System.Go, diag.System.Version)
	fmt.Fprintln(w, "---")

	for _, res := range diag.Results {
		style := pass
		switch res.Status {
		case "FAIL":
			style = fail
		case "WARN":
			style = warn
		case "SKIP":
			style = dim
		}
		fmt.Fprintf(w, "%s %-15s: %s\n", style.Render(fmt.Sprintf("[%s]", res.Status)), res.Name, res.Message)
		if res.Detail != "" {
			fmt.Fprintf(w, "       %s\n", dim.Render(res.Detail))
		}
	}
}
