package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/basket/perplexity-mcp/internal/config"
	"github.com/basket/perplexity-mcp/internal/mcp"
	otelPkg "github.com/basket/perplexity-mcp/internal/otel"
	"github.com/basket/perplexity-mcp/internal/telemetry"
	"github.com/basket/perplexity-mcp/internal/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// serve runs the MCP server until the peer disconnects or ctx is cancelled.
// Startup failures are logged and returned as *startupError after deferred
// cleanup has run.
func serve(ctx context.Context, cfg config.Config, apiKey string, quiet bool) error {
	level := new(slog.LevelVar)
	level.Set(telemetry.ParseLevel(cfg.LogLevel))
	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, level, quiet)
	if err != nil {
		return startupFailure(nil, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded", "fingerprint", cfg.Fingerprint(), "endpoint", cfg.Endpoint)

	otelProvider, err := otelPkg.Init(ctx, cfg.Telemetry)
	if err != nil {
		return startupFailure(logger, "E_OTEL_INIT", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dispatcher, err := newDispatcher(cfg, apiKey, otelProvider, logger)
	if err != nil {
		return startupFailure(logger, "E_METRICS_INIT", err)
	}
	srv := mcp.NewServer(dispatcher, Version, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.HTTPAddr != "" {
		ln, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			if isAddrInUse(err) {
				err = fmt.Errorf("%w\n\n  %s", err, portOccupantHint(cfg.HTTPAddr))
			}
			return startupFailure(logger, "E_HTTP_LISTENER_BIND", err)
		}
		g.Go(func() error { return serveHTTP(gctx, ln, srv.HTTPHandler(), logger) })
		logger.Info("perplexity-mcp running on http", "addr", ln.Addr().String())
	} else {
		g.Go(func() error {
			// Stdin closing ends the session and with it the process.
			defer cancel()
			return srv.Run(gctx, &mcpsdk.StdioTransport{})
		})
		logger.Info("perplexity-mcp running on stdio")
	}

	g.Go(func() error {
		watchConfig(gctx, cfg.HomeDir, level, logger)
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("shutdown signal received")
	}
	if err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func newDispatcher(cfg config.Config, apiKey string, p *otelPkg.Provider, logger *slog.Logger) (*tools.Dispatcher, error) {
	metrics, err := otelPkg.NewMetrics(p.Meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	provider := tools.NewPerplexityProvider(apiKey, tools.WithEndpoint(cfg.Endpoint))
	logger.Info("search provider ready", "provider", provider.Name(), "domains", provider.Domains())
	return tools.NewDispatcher(provider,
		tools.WithLogger(logger),
		tools.WithTracer(p.Tracer),
		tools.WithMetrics(metrics),
	), nil
}

func serveHTTP(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	server := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	return nil
}

// watchConfig applies log level changes from config.yaml until ctx is done.
// Other settings take effect on restart.
func watchConfig(ctx context.Context, homeDir string, level *slog.LevelVar, logger *slog.Logger) {
	w := config.NewWatcher(homeDir, logger)
	if err := w.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", "error", err)
		return
	}
	for range w.Events() {
		reloadLogLevel(homeDir, level, logger)
	}
}

func reloadLogLevel(homeDir string, level *slog.LevelVar, logger *slog.Logger) {
	cfg, err := config.LoadFrom(homeDir)
	if err != nil {
		logger.Warn("config reload failed; keeping current settings", "error", err)
		return
	}
	next := telemetry.ParseLevel(cfg.LogLevel)
	if next == level.Level() {
		return
	}
	level.Set(next)
	logger.Info("log level changed", "level", next.String(), "fingerprint", cfg.Fingerprint())
}
