// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/auth"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/bluebutton"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/config"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/health"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/oauthproxy"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/versions"
)

const serviceName = "blue-button-mcp"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Blue Button MCP server",
		Long: `Start the MCP server with its OAuth endpoints and health check.

Configuration comes from the environment:

  BLUE_BUTTON_CLIENT_ID      Blue Button application client ID (required)
  BLUE_BUTTON_CLIENT_SECRET  Blue Button application client secret (required)
  BLUE_BUTTON_API_BASE       API base URL (default: Blue Button sandbox)
  BASE_URL                   Externally reachable base URL of this server
  BBMCP_HOST                 Listen host (default: localhost)
  BBMCP_PORT                 Listen port (default: 8000)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verifier := auth.NewTokenVerifier(cfg.APIBase)

	proxy, err := oauthproxy.NewProxy(bluebutton.ProxyConfig(
		cfg.ClientID, cfg.ClientSecret, cfg.APIBase, cfg.BaseURL))
	if err != nil {
		return err
	}
	defer proxy.Close()

	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		serviceName,
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	bluebutton.RegisterTools(mcpServer, bluebutton.NewClient(cfg.APIBase))

	streamableServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath("/mcp"),
		// The verification middleware stores the token on the request
		// context; copy it over so tool handlers can see it.
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if token, ok := auth.AccessTokenFromContext(r.Context()); ok {
				return auth.WithAccessToken(ctx, token)
			}
			return ctx
		}),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	proxy.RegisterRoutes(router)
	router.Get("/health", health.NewHandler(serviceName))

	resourceHandler := auth.NewProtectedResourceHandler(cfg.BaseURL+"/mcp", cfg.BaseURL, bluebutton.Scopes)
	router.Handle("/.well-known/oauth-protected-resource", resourceHandler)
	router.Handle("/.well-known/oauth-protected-resource/mcp", resourceHandler)

	router.With(verifier.Middleware(cfg.BaseURL)).Handle("/mcp", streamableServer)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting Blue Button MCP server on http://%s/mcp", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down MCP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return httpServer.Shutdown(shutdownCtx)
}
