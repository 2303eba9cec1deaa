// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the bbmcp command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "bbmcp",
	DisableAutoGenTag: true,
	Short:             "Blue Button MCP server - Medicare claims data over MCP",
	Long: `bbmcp is an MCP (Model Context Protocol) server exposing the CMS Blue Button 2.0
FHIR API. It lets AI assistants retrieve a Medicare beneficiary's own claims,
coverage, and demographic data on the beneficiary's behalf.

The server fronts Blue Button's single fixed OAuth registration with a
standards-compliant authorization server facade, so any MCP client that speaks
dynamic client registration and PKCE can connect without manual setup. Access
tokens are verified against Blue Button on every request and each tool call is
scoped to the patient the token belongs to.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates a new root command for the bbmcp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
