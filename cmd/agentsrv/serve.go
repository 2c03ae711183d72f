package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tagus/enterprise-agents/pkg/microservice"
)

var (
	listenAddr     string
	insecureNoAuth bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API serving every configured agent under /api/v1.

Health is reported on /health and Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: SERVER_ADDR or :8000)")
	serveCmd.Flags().BoolVar(&insecureNoAuth, "insecure-no-auth", false, "Serve without API keys (local development only)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			a.logger.Error(shutdownCtx, "Failed to close clients", map[string]interface{}{"error": err.Error()})
		}
	}()

	auth, err := microservice.ConfiguredAuthenticator(a.cfg.Server.APIKeys, a.cfg.Server.JWTSecret, insecureNoAuth)
	if err != nil {
		return fmt.Errorf("refusing to serve: %w (set API_KEYS or pass --insecure-no-auth)", err)
	}
	if !auth.Enabled() {
		a.logger.Warn(ctx, "Serving without authentication", nil)
	}

	server := microservice.NewHTTPServer(a.service,
		microservice.WithAuthenticator(auth),
		microservice.WithMetrics(a.metrics),
		microservice.WithRequestLog(a.requestLog()),
		microservice.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
		microservice.WithRootPath(a.cfg.Server.RootPath),
		microservice.WithMaxBodyBytes(a.cfg.Server.MaxBodyBytes),
		microservice.WithLogger(a.logger),
	)

	addr := listenAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "Shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
