// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/networking"
)

// maxResponseSize is the maximum allowed identity response size to prevent DoS.
const maxResponseSize = 1024 * 1024 // 1MB

// Common errors
var (
	ErrNoToken     = errors.New("no token provided")
	ErrRateLimited = errors.New("token verification rate limited")
)

// TokenVerifier validates opaque bearer tokens by round-tripping them against
// the Blue Button identity endpoint. It keeps no local token state: validity
// is delegated entirely to the upstream provider, one round trip per call,
// with no retries.
type TokenVerifier struct {
	userinfoURL string
	client      *http.Client
	limiter     *rate.Limiter
}

// TokenVerifierOption configures a TokenVerifier.
type TokenVerifierOption func(*TokenVerifier)

// WithHTTPClient sets a custom HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) TokenVerifierOption {
	return func(v *TokenVerifier) {
		v.client = client
	}
}

// WithRateLimit overrides the local verification rate limit.
func WithRateLimit(limit rate.Limit, burst int) TokenVerifierOption {
	return func(v *TokenVerifier) {
		v.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewTokenVerifier creates a verifier for the identity endpoint under the
// given Blue Button API base URL.
func NewTokenVerifier(apiBase string, opts ...TokenVerifierOption) *TokenVerifier {
	v := &TokenVerifier{
		userinfoURL: strings.TrimSuffix(apiBase, "/") + "/connect/userinfo",
		client:      networking.NewHttpClientBuilder().Build(),
		// Tokens are verified once per inbound request; the local limiter
		// bounds upstream amplification under attack or misbehaving clients.
		limiter: rate.NewLimiter(100, 200),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify answers "is this bearer token currently valid, and if so, who is it
// for and what can they access?". On success it returns a fully populated
// AccessToken built fresh for this call. On any failure it returns a nil
// token with a cause error; callers must branch only on nil/non-nil. The
// cause exists for logging, not control flow.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*AccessToken, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	if !v.limiter.Allow() {
		return nil, ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		// Log for debugging; the caller only sees "unverified".
		logger.Debugw("userinfo request rejected",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if len(claims) == 0 {
		return nil, errors.New("userinfo response contained no claims")
	}

	// Stamp the resolved patient id back into the claims so downstream
	// consumers only ever look at the canonical 'patient' key. Absence is not
	// a verification failure; the tool layer reports it separately.
	if patientID, err := ExtractPatientID(claims); err == nil {
		claims["patient"] = patientID
	}

	clientID := "unknown"
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		clientID = sub
	}

	var expiresAt time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0)
	}

	return &AccessToken{
		Token:     tokenString,
		ClientID:  clientID,
		Scopes:    NormalizeScopes(claims),
		ExpiresAt: expiresAt,
		Claims:    claims,
	}, nil
}
