// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bluebutton exposes the CMS Blue Button 2.0 FHIR API as MCP
// tools. The client speaks plain FHIR R4 over HTTP using the access token
// of the calling user; the tools read that token from the request context.
package bluebutton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/networking"
	"github.com/healthbridge-ai/bluebutton-mcp/pkg/oauthproxy"
)

// Scopes is the set of scopes the Blue Button sandbox grants to patient
// facing applications.
var Scopes = []string{
	"openid",
	"profile",
	"patient/Patient.rs",
	"patient/Coverage.rs",
	"patient/ExplanationOfBenefit.rs",
}

const maxFHIRResponseSize = 10 << 20 // 10MB, EOB bundles get large

// APIError is a non-2xx response from the FHIR API. The status code is
// surfaced to the tool caller; the body excerpt goes into the detail.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

// Client issues authenticated requests against a Blue Button FHIR base.
type Client struct {
	apiBase string
	client  *http.Client
}

// NewClient builds a client for the given API base, e.g.
// https://sandbox.bluebutton.cms.gov/v2.
func NewClient(apiBase string) *Client {
	return &Client{
		apiBase: strings.TrimSuffix(apiBase, "/"),
		client:  networking.NewHttpClientBuilder().Build(),
	}
}

// Get fetches a FHIR endpoint (path plus query, relative to the API base)
// with the given bearer token and decodes the JSON body.
func (c *Client) Get(ctx context.Context, token, endpoint string) (map[string]any, error) {
	url := c.apiBase + "/" + strings.TrimPrefix(endpoint, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create FHIR request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FHIR request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFHIRResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read FHIR response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(body)
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode FHIR response: %w", err)
	}
	return data, nil
}

// ProxyConfig assembles the OAuth proxy config for a Blue Button upstream.
// The authorize and token endpoints hang off the API base; there is no
// discovery document to consult.
func ProxyConfig(clientID, clientSecret, apiBase, baseURL string) *oauthproxy.Config {
	base := strings.TrimSuffix(apiBase, "/")
	return &oauthproxy.Config{
		UpstreamClientID:     clientID,
		UpstreamClientSecret: clientSecret,
		UpstreamAuthorizeURL: base + "/o/authorize/",
		UpstreamTokenURL:     base + "/o/token/",
		BaseURL:              baseURL,
		ValidScopes:          Scopes,
	}
}
