// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Blue Button MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthbridge-ai/bluebutton-mcp/cmd/bbmcp/app"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
)

func main() {
	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
