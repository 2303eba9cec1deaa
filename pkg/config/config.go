// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the process configuration for the
// Blue Button MCP server from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for optional configuration values.
const (
	// DefaultAPIBase points at the Blue Button sandbox for development.
	DefaultAPIBase = "https://sandbox.bluebutton.cms.gov/v2"

	// DefaultBaseURL is this server's externally visible base URL when none
	// is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultHost is the default listen host.
	DefaultHost = "localhost"

	// DefaultPort is the default listen port.
	DefaultPort = 8000
)

// ErrMissingCredentials indicates the fixed upstream client registration is
// not configured. The server must refuse to start in this state rather than
// serve unauthenticated.
var ErrMissingCredentials = errors.New(
	"missing required environment variables: BLUE_BUTTON_CLIENT_ID and BLUE_BUTTON_CLIENT_SECRET")

// Config holds the resolved process configuration. It is created once at
// startup and shared read-only by all request handlers.
type Config struct {
	// ClientID is the pre-registered Blue Button OAuth client id.
	ClientID string

	// ClientSecret is the pre-registered Blue Button OAuth client secret.
	ClientSecret string

	// APIBase is the Blue Button API base URL (no trailing slash).
	APIBase string

	// BaseURL is this server's externally visible base URL (no trailing slash).
	BaseURL string

	// Host is the listen host.
	Host string

	// Port is the listen port.
	Port int
}

// Load reads configuration from the environment. Blue Button does not support
// dynamic client registration, so the client id/secret pair must come from a
// manual app registration; both are required.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("BLUE_BUTTON_API_BASE", DefaultAPIBase)
	v.SetDefault("BASE_URL", DefaultBaseURL)
	v.SetDefault("BBMCP_HOST", DefaultHost)
	v.SetDefault("BBMCP_PORT", DefaultPort)

	cfg := &Config{
		ClientID:     v.GetString("BLUE_BUTTON_CLIENT_ID"),
		ClientSecret: v.GetString("BLUE_BUTTON_CLIENT_SECRET"),
		APIBase:      strings.TrimSuffix(v.GetString("BLUE_BUTTON_API_BASE"), "/"),
		BaseURL:      strings.TrimSuffix(v.GetString("BASE_URL"), "/"),
		Host:         v.GetString("BBMCP_HOST"),
		Port:         v.GetInt("BBMCP_PORT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.APIBase == "" {
		return fmt.Errorf("Blue Button API base URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// ListenAddr returns the host:port pair the HTTP server should bind to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
