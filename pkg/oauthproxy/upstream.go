// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/networking"
)

// maxUpstreamResponseSize caps token endpoint response bodies.
const maxUpstreamResponseSize = 1 << 20 // 1MB

// ErrUpstreamExchange is returned when the upstream provider rejects a
// token request. The upstream error body is logged, never surfaced, so
// downstream clients cannot probe the fixed registration.
var ErrUpstreamExchange = errors.New("upstream token exchange failed")

// TokenResponse is an RFC 6749 token endpoint response. The proxy relays
// it to downstream clients unchanged.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	PatientID    string `json:"patient,omitempty"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// upstreamClient talks to the fixed-registration identity provider. The
// endpoints are static; Blue Button publishes no discovery document.
type upstreamClient struct {
	authorizeURL string
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
}

func newUpstreamClient(authorizeURL, tokenURL, clientID, clientSecret string) *upstreamClient {
	return &upstreamClient{
		authorizeURL: authorizeURL,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       networking.NewHttpClientBuilder().Build(),
	}
}

// AuthorizationURL builds the upstream authorization redirect. The fixed
// client ID and the proxy's own callback replace whatever the downstream
// client sent.
func (u *upstreamClient) AuthorizationURL(callbackURL, state string, scopes []string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", u.clientID)
	q.Set("redirect_uri", callbackURL)
	q.Set("state", state)
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}

	sep := "?"
	if strings.Contains(u.authorizeURL, "?") {
		sep = "&"
	}
	return u.authorizeURL + sep + q.Encode()
}

// ExchangeCode redeems an upstream authorization code using the fixed
// client credentials.
func (u *upstreamClient) ExchangeCode(ctx context.Context, code, callbackURL string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", callbackURL)
	return u.tokenRequest(ctx, form)
}

// RefreshTokens forwards a refresh grant upstream.
func (u *upstreamClient) RefreshTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return u.tokenRequest(ctx, form)
}

func (u *upstreamClient) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	form.Set("client_id", u.clientID)
	form.Set("client_secret", u.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		logger.Debugw("upstream token request failed", "error", err)
		return nil, ErrUpstreamExchange
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamResponseSize))
	if err != nil {
		logger.Debugw("failed to read upstream token response", "error", err)
		return nil, ErrUpstreamExchange
	}

	if resp.StatusCode != http.StatusOK {
		var upstreamErr tokenErrorResponse
		if err := json.Unmarshal(body, &upstreamErr); err == nil && upstreamErr.Error != "" {
			logger.Debugw("upstream rejected token request",
				"status", resp.StatusCode,
				"error", upstreamErr.Error,
				"error_description", upstreamErr.ErrorDescription)
		} else {
			logger.Debugw("upstream rejected token request", "status", resp.StatusCode)
		}
		return nil, ErrUpstreamExchange
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		logger.Debugw("failed to decode upstream token response", "error", err)
		return nil, ErrUpstreamExchange
	}
	if tokens.AccessToken == "" {
		logger.Debugw("upstream token response missing access_token")
		return nil, ErrUpstreamExchange
	}
	return &tokens, nil
}
