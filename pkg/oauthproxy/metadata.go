// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"net/http"
)

// AuthorizationServerMetadata is the RFC 8414 authorization server
// metadata document, also served as an OpenID Connect discovery document
// since MCP clients probe both well-known paths.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

func (p *Proxy) metadata() *AuthorizationServerMetadata {
	return &AuthorizationServerMetadata{
		Issuer:                            p.Issuer(),
		AuthorizationEndpoint:             p.baseURL + "/authorize",
		TokenEndpoint:                     p.baseURL + "/token",
		RegistrationEndpoint:              p.baseURL + "/register",
		ScopesSupported:                   p.config.ValidScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none"},
	}
}

// MetadataHandler serves the authorization server metadata with the CORS
// headers browser-based MCP clients need for discovery.
func (p *Proxy) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, mcp-protocol-version")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, p.metadata())
}
