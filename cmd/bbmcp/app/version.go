// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/versions"
)

func newVersionCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the bbmcp version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()

			if outputJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal version info: %w", err)
				}
				cmd.Println(string(out))
				return nil
			}

			cmd.Printf("bbmcp %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output version information as JSON")
	return cmd
}
