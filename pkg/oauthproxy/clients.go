// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	maxRedirectURIs     = 10
	maxClientNameLength = 256
)

// Client is a dynamically registered downstream OAuth client. All clients
// are public (no client secret); PKCE is what binds the code to the client.
type Client struct {
	ID           string
	Name         string
	RedirectURIs []string
}

// MatchesRedirectURI reports whether the requested redirect URI is
// acceptable for this client. Non-loopback URIs must match a registered
// URI exactly. Loopback URIs (RFC 8252 section 7.3) match a registered
// loopback URI on any port, since native clients bind an ephemeral port
// at runtime.
func (c *Client) MatchesRedirectURI(redirectURI string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == redirectURI {
			return true
		}
		if matchesAsLoopback(registered, redirectURI) {
			return true
		}
	}
	return false
}

func matchesAsLoopback(registered, requested string) bool {
	regURL, err := url.Parse(registered)
	if err != nil {
		return false
	}
	reqURL, err := url.Parse(requested)
	if err != nil {
		return false
	}

	if !isLoopbackHost(regURL.Hostname()) || !isLoopbackHost(reqURL.Hostname()) {
		return false
	}

	// Scheme, host, and path must agree; only the port may float.
	return regURL.Scheme == reqURL.Scheme &&
		regURL.Hostname() == reqURL.Hostname() &&
		regURL.Path == reqURL.Path
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// RegistrationRequest is an RFC 7591 dynamic client registration request.
// Only the fields the proxy acts on are modeled; unknown fields are
// accepted and ignored.
type RegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegistrationResponse is the RFC 7591 response for a successful
// registration.
type RegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
}

// RegistrationError is the RFC 7591 error response body.
type RegistrationError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// validateRegistration checks an incoming registration request and returns
// the client to store. Errors use RFC 7591 error codes.
func validateRegistration(req *RegistrationRequest) (*Client, *RegistrationError) {
	if len(req.RedirectURIs) == 0 {
		return nil, &RegistrationError{
			Error:            "invalid_redirect_uri",
			ErrorDescription: "redirect_uris is required",
		}
	}
	if len(req.RedirectURIs) > maxRedirectURIs {
		return nil, &RegistrationError{
			Error:            "invalid_redirect_uri",
			ErrorDescription: fmt.Sprintf("too many redirect_uris (max %d)", maxRedirectURIs),
		}
	}
	if len(req.ClientName) > maxClientNameLength {
		return nil, &RegistrationError{
			Error:            "invalid_client_metadata",
			ErrorDescription: fmt.Sprintf("client_name too long (max %d characters)", maxClientNameLength),
		}
	}

	for _, raw := range req.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return nil, &RegistrationError{
				Error:            "invalid_redirect_uri",
				ErrorDescription: fmt.Sprintf("invalid redirect URI: %s", raw),
			}
		}
		switch u.Scheme {
		case "https":
		case "http":
			if !isLoopbackHost(u.Hostname()) {
				return nil, &RegistrationError{
					Error:            "invalid_redirect_uri",
					ErrorDescription: "http redirect URIs must use a loopback host",
				}
			}
		default:
			// Custom schemes for native apps are allowed as long as
			// they carry an authority or path to redirect into.
			if u.Opaque == "" && u.Host == "" && u.Path == "" {
				return nil, &RegistrationError{
					Error:            "invalid_redirect_uri",
					ErrorDescription: fmt.Sprintf("invalid redirect URI: %s", raw),
				}
			}
		}
	}

	if req.TokenEndpointAuthMethod != "" && req.TokenEndpointAuthMethod != "none" {
		return nil, &RegistrationError{
			Error:            "invalid_client_metadata",
			ErrorDescription: "only public clients (token_endpoint_auth_method \"none\") are supported",
		}
	}

	uris := make([]string, len(req.RedirectURIs))
	copy(uris, req.RedirectURIs)

	return &Client{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.ClientName),
		RedirectURIs: uris,
	}, nil
}
