// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package bluebutton

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/fhir+json", r.Header.Get("Accept"))
		assert.Equal(t, "/v2/fhir/Patient/123", r.URL.Path)

		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write([]byte(`{"resourceType":"Patient","id":"123"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/v2")
	data, err := c.Get(context.Background(), "test-token", "fhir/Patient/123")
	require.NoError(t, err)
	assert.Equal(t, "Patient", data["resourceType"])
	assert.Equal(t, "123", data["id"])
}

func TestClientGetTrimsSlashes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/fhir/Coverage", r.URL.Path)
		_, _ = w.Write([]byte(`{"resourceType":"Bundle"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/v2/")
	_, err := c.Get(context.Background(), "tok", "/fhir/Coverage")
	require.NoError(t, err)
}

func TestClientGetAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[{"severity":"error"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Get(context.Background(), "tok", "fhir/Patient/123")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "OperationOutcome")
	assert.Equal(t, "API error: 403", apiErr.Error())
}

func TestClientGetAPIErrorDetailTruncated(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Get(context.Background(), "tok", "fhir/Patient/123")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Detail, 512)
}

func TestClientGetMalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Get(context.Background(), "tok", "fhir/Patient/123")
	require.Error(t, err)
	assert.NotErrorAs(t, err, new(*APIError))
}

func TestProxyConfig(t *testing.T) {
	t.Parallel()

	cfg := ProxyConfig("id", "secret", "https://sandbox.bluebutton.cms.gov/v2/", "http://localhost:8000")
	assert.Equal(t, "https://sandbox.bluebutton.cms.gov/v2/o/authorize/", cfg.UpstreamAuthorizeURL)
	assert.Equal(t, "https://sandbox.bluebutton.cms.gov/v2/o/token/", cfg.UpstreamTokenURL)
	assert.Equal(t, Scopes, cfg.ValidScopes)
	require.NoError(t, cfg.Validate())
}
