// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth provides bearer-token verification against the Blue Button
// identity endpoint and the claim normalization that turns heterogeneous
// upstream claim shapes into a single patient identity.
package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a verified identity record. It is created fresh on every
// verification call, held for the duration of a single request, and then
// discarded; there is no token store.
type AccessToken struct {
	// Token is the opaque bearer credential presented by the client.
	// This is redacted in String() and MarshalJSON() to prevent leakage.
	Token string

	// ClientID identifies the authenticated subject, derived from the
	// upstream 'sub' claim. Defaults to "unknown" when absent.
	ClientID string

	// Scopes are the permission strings granted to this token.
	Scopes []string

	// ExpiresAt is the absolute expiry time, when the upstream reports one.
	// The zero value means "unknown": validity is delegated entirely to
	// upstream revocation.
	ExpiresAt time.Time

	// Claims is the full raw claim mapping from the upstream identity
	// endpoint. Non-empty for any verified token.
	Claims jwt.MapClaims
}

// HasScope reports whether the token carries the given scope.
func (t *AccessToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// String returns a representation of the AccessToken with the bearer
// credential redacted, preventing accidental leakage in logs.
func (t *AccessToken) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("AccessToken{ClientID:%q, Scopes:%v}", t.ClientID, t.Scopes)
}

// MarshalJSON implements json.Marshaler to redact the bearer credential
// during JSON serialization.
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}

	type safeToken struct {
		Token     string        `json:"token"`
		ClientID  string        `json:"clientId"`
		Scopes    []string      `json:"scopes"`
		ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
		Claims    jwt.MapClaims `json:"claims"`
	}

	token := t.Token
	if token != "" {
		token = "REDACTED"
	}

	var expiresAt *time.Time
	if !t.ExpiresAt.IsZero() {
		expiresAt = &t.ExpiresAt
	}

	return json.Marshal(&safeToken{
		Token:     token,
		ClientID:  t.ClientID,
		Scopes:    t.Scopes,
		ExpiresAt: expiresAt,
		Claims:    t.Claims,
	})
}
