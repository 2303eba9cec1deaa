// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:paralleltest // Modifies process environment
func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("BLUE_BUTTON_CLIENT_ID", "")
	t.Setenv("BLUE_BUTTON_CLIENT_SECRET", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingCredentials)

	// One credential is not enough.
	t.Setenv("BLUE_BUTTON_CLIENT_ID", "client-id")
	_, err = Load()
	require.ErrorIs(t, err, ErrMissingCredentials)
}

//nolint:paralleltest // Modifies process environment
func TestLoadDefaults(t *testing.T) {
	t.Setenv("BLUE_BUTTON_CLIENT_ID", "client-id")
	t.Setenv("BLUE_BUTTON_CLIENT_SECRET", "client-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "localhost:8000", cfg.ListenAddr())
}

//nolint:paralleltest // Modifies process environment
func TestLoadTrimsTrailingSlashes(t *testing.T) {
	t.Setenv("BLUE_BUTTON_CLIENT_ID", "client-id")
	t.Setenv("BLUE_BUTTON_CLIENT_SECRET", "client-secret")
	t.Setenv("BLUE_BUTTON_API_BASE", "https://api.bluebutton.cms.gov/v2/")
	t.Setenv("BASE_URL", "https://mcp.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.bluebutton.cms.gov/v2", cfg.APIBase)
	assert.Equal(t, "https://mcp.example.com", cfg.BaseURL)
}

func TestValidatePort(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIBase:      DefaultAPIBase,
		Port:         0,
	}
	assert.Error(t, cfg.Validate())

	cfg.Port = 8000
	assert.NoError(t, cfg.Validate())
}
