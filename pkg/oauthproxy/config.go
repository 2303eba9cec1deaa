// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Config describes the upstream registration and the proxy's own identity.
type Config struct {
	// UpstreamClientID and UpstreamClientSecret are the fixed credentials
	// issued by the upstream provider.
	UpstreamClientID     string
	UpstreamClientSecret string

	// UpstreamAuthorizeURL and UpstreamTokenURL are the provider's OAuth
	// endpoints. There is no discovery; both must be set.
	UpstreamAuthorizeURL string
	UpstreamTokenURL     string

	// BaseURL is the externally reachable base of this proxy, used to
	// build the issuer, the upstream callback, and metadata endpoints.
	BaseURL string

	// ValidScopes is the catalog of scopes downstream clients may request.
	// A request carrying any scope outside this set is rejected.
	ValidScopes []string

	// FlowTTL bounds authorization flow lifetime. Zero means DefaultFlowTTL.
	FlowTTL time.Duration
}

// Validate checks that the config is complete enough to run a flow.
func (c *Config) Validate() error {
	if c.UpstreamClientID == "" || c.UpstreamClientSecret == "" {
		return fmt.Errorf("upstream client credentials are required")
	}
	if c.UpstreamAuthorizeURL == "" {
		return fmt.Errorf("upstream authorize URL is required")
	}
	if c.UpstreamTokenURL == "" {
		return fmt.Errorf("upstream token URL is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}

// Proxy is the authorization server facade. Create one with NewProxy and
// mount its routes with Router or RegisterRoutes.
type Proxy struct {
	config   *Config
	baseURL  string
	upstream *upstreamClient
	store    *flowStore
	scopes   map[string]struct{}
}

// NewProxy validates the config and builds a proxy with an empty client
// registry and a running flow-state janitor.
func NewProxy(cfg *Config) (*Proxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oauth proxy config: %w", err)
	}

	scopes := make(map[string]struct{}, len(cfg.ValidScopes))
	for _, s := range cfg.ValidScopes {
		scopes[s] = struct{}{}
	}

	return &Proxy{
		config:  cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		upstream: newUpstreamClient(
			cfg.UpstreamAuthorizeURL,
			cfg.UpstreamTokenURL,
			cfg.UpstreamClientID,
			cfg.UpstreamClientSecret,
		),
		store:  newFlowStore(cfg.FlowTTL, DefaultCleanupInterval),
		scopes: scopes,
	}, nil
}

// Close releases the proxy's background resources.
func (p *Proxy) Close() {
	p.store.Close()
}

// CallbackURL is the redirect URI registered upstream for this proxy.
func (p *Proxy) CallbackURL() string {
	return p.baseURL + "/auth/callback"
}

// Issuer is the authorization server issuer identifier.
func (p *Proxy) Issuer() string {
	return p.baseURL
}

func (p *Proxy) scopeAllowed(scope string) bool {
	if len(p.scopes) == 0 {
		return true
	}
	_, ok := p.scopes[scope]
	return ok
}

// randomToken returns an unguessable URL-safe string used for internal
// state values and downstream authorization codes.
func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the platform is broken.
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
