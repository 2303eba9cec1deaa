// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
)

// escapeQuotes escapes backslashes and double quotes for use inside a quoted
// WWW-Authenticate parameter value.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// buildWWWAuthenticate builds an RFC 6750 / RFC 9728 compliant value for the
// WWW-Authenticate header. It always includes realm and, if set,
// resource_metadata. If includeError is true, it appends error="invalid_token".
func buildWWWAuthenticate(realm, resourceMetadataURL string, includeError bool) string {
	var parts []string

	if realm != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, escapeQuotes(realm)))
	}
	if resourceMetadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, escapeQuotes(resourceMetadataURL)))
	}
	if includeError {
		parts = append(parts, `error="invalid_token"`)
	}

	return "Bearer " + strings.Join(parts, ", ")
}

// Middleware creates HTTP middleware that verifies bearer tokens against the
// upstream identity endpoint and stores the resulting AccessToken in the
// request context. All verification failures look identical to the client
// (401, invalid_token); the cause is only logged.
//
// realm is this server's base URL, also used to derive the RFC 9728 protected
// resource metadata URL advertised in challenges.
func (v *TokenVerifier) Middleware(realm string) func(http.Handler) http.Handler {
	resourceMetadataURL := ""
	if realm != "" {
		resourceMetadataURL = strings.TrimSuffix(realm, "/") + "/.well-known/oauth-protected-resource"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(realm, resourceMetadataURL, false))
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(realm, resourceMetadataURL, false))
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := v.Verify(r.Context(), tokenString)
			if err != nil {
				logger.Debugw("token verification failed", "error", err.Error())
				w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(realm, resourceMetadataURL, true))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccessToken(r.Context(), token)))
		})
	}
}

// ProtectedResourceMetadata represents the OAuth Protected Resource metadata
// as defined in RFC 9728.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
}

// NewProtectedResourceHandler creates an HTTP handler returning RFC 9728
// OAuth Protected Resource metadata, pointing MCP clients at the proxy's
// authorization server surface.
func NewProtectedResourceHandler(resourceURL, authServerURL string, scopes []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers so browser-based MCP clients can discover the
		// authorization server. This is public metadata.
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "mcp-protocol-version, Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		metadata := ProtectedResourceMetadata{
			Resource:               resourceURL,
			AuthorizationServers:   []string{authServerURL},
			BearerMethodsSupported: []string{"header"},
			ScopesSupported:        scopes,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metadata); err != nil {
			logger.Errorf("Failed to encode protected resource metadata: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
