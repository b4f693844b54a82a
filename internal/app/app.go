// Package app provides the top-level lifecycle of the crypto payment MCP
// server. It wires dependencies and starts the transports selected by the
// configured mode: the MCP stdio loop, the webhook HTTP server, or both.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/syamai/crypto-payment-mcp/internal/config"
	"github.com/syamai/crypto-payment-mcp/internal/mcp"
	"github.com/syamai/crypto-payment-mcp/internal/server"
	"github.com/syamai/crypto-payment-mcp/internal/server/handler"
)

// ServerName and ServerVersion identify this server in the MCP handshake.
const (
	ServerName    = "crypto-payment-mcp"
	ServerVersion = "1.0.0"
)

const shutdownTimeout = 5 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	// stdin and stdout carry the MCP stream. Tests replace them.
	stdin  io.Reader
	stdout io.Writer
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

// Run wires all dependencies, starts the transports for the configured mode
// and blocks until they stop or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("platform_configured", a.cfg.PlatformConfigured()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.serve(ctx, deps)
}

func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.ServesMCP() && !a.cfg.ServesHTTP() {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.ServesMCP() {
		tools := mcp.NewToolHandler(deps.Prices, deps.Payments, deps.Metrics, a.logger)
		stdio := mcp.NewServer(tools, mcp.ServerInfo{Name: ServerName, Version: ServerVersion}, a.stdin, a.stdout, a.logger)
		g.Go(func() error {
			a.logger.InfoContext(gctx, "mcp server running on stdio")
			// A closed stdin returns nil, which leaves the HTTP server running
			// in full mode.
			return stdio.Run(gctx)
		})
	}

	if a.cfg.ServesHTTP() {
		a.startHTTPServer(gctx, g, deps)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startHTTPServer runs the webhook receiver in g and shuts it down when ctx
// is done.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		RateLimitRPS:   a.cfg.Server.RateLimitRPS,
		RateLimitBurst: a.cfg.Server.RateLimitBurst,
		APIKey:         a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Payments, a.logger),
		Webhook: handler.NewWebhookHandler(deps.Webhooks, deps.WebhookStore, a.cfg.Server.SignatureHeader, a.logger),
		Metrics: promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
