// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package bluebutton

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/auth"
)

// authedContext returns a context carrying a verified token for the given
// patient. An empty patientID simulates a token without the patient claim.
func authedContext(patientID string) context.Context {
	claims := jwt.MapClaims{"sub": "user-1"}
	if patientID != "" {
		claims["patient"] = patientID
	}
	return auth.WithAccessToken(context.Background(), &auth.AccessToken{
		Token:  "user-token",
		Claims: claims,
	})
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func structured(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	out, ok := result.StructuredContent.(map[string]interface{})
	require.True(t, ok, "expected structured tool result")
	return out
}

func newFHIRServer(t *testing.T, handler http.HandlerFunc) *toolHandler {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &toolHandler{fhir: NewClient(srv.URL)}
}

func TestGetPatientInfo(t *testing.T) {
	t.Parallel()

	h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fhir/Patient/4995401", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"resourceType":"Patient","id":"4995401"}`))
	})

	result, err := h.getPatientInfo(authedContext("4995401"), toolRequest(nil))
	require.NoError(t, err)

	out := structured(t, result)
	assert.Equal(t, "4995401", out["patient_id"])
	data, ok := out["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Patient", data["resourceType"])
}

func TestToolsNotAuthenticated(t *testing.T) {
	t.Parallel()

	h := newFHIRServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("the FHIR API must not be called without a token")
	})

	result, err := h.getPatientInfo(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "Not authenticated", structured(t, result)["error"])
}

func TestToolsNoPatientID(t *testing.T) {
	t.Parallel()

	h := newFHIRServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("the FHIR API must not be called without a patient id")
	})

	result, err := h.getCoverageInfo(authedContext(""), toolRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No patient ID in token", structured(t, result)["error"])
}

func TestToolsAPIError(t *testing.T) {
	t.Parallel()

	h := newFHIRServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"resourceType":"OperationOutcome"}`))
	})

	result, err := h.getPatientInfo(authedContext("4995401"), toolRequest(nil))
	require.NoError(t, err)

	out := structured(t, result)
	assert.Equal(t, "API error: 404", out["error"])
	assert.Contains(t, out["detail"], "OperationOutcome")
}

func TestGetCoverageInfo(t *testing.T) {
	t.Parallel()

	h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fhir/Coverage", r.URL.Path)
		assert.Equal(t, "4995401", r.URL.Query().Get("beneficiary"))
		_, _ = w.Write([]byte(`{"resourceType":"Bundle","total":2}`))
	})

	result, err := h.getCoverageInfo(authedContext("4995401"), toolRequest(nil))
	require.NoError(t, err)

	out := structured(t, result)
	assert.Equal(t, "4995401", out["patient_id"])
	assert.NotNil(t, out["coverage"])
}

func TestGetExplanationOfBenefit(t *testing.T) {
	t.Parallel()

	t.Run("all claims", func(t *testing.T) {
		t.Parallel()
		h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fhir/ExplanationOfBenefit", r.URL.Path)
			assert.Equal(t, "4995401", r.URL.Query().Get("patient"))
			_, _ = w.Write([]byte(`{"resourceType":"Bundle"}`))
		})

		result, err := h.getExplanationOfBenefit(authedContext("4995401"), toolRequest(nil))
		require.NoError(t, err)
		assert.NotNil(t, structured(t, result)["claims"])
	})

	t.Run("single eob", func(t *testing.T) {
		t.Parallel()
		h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fhir/ExplanationOfBenefit/eob-77", r.URL.Path)
			_, _ = w.Write([]byte(`{"resourceType":"ExplanationOfBenefit","id":"eob-77"}`))
		})

		result, err := h.getExplanationOfBenefit(authedContext("4995401"),
			toolRequest(map[string]interface{}{"eob_id": "eob-77"}))
		require.NoError(t, err)
		assert.NotNil(t, structured(t, result)["claims"])
	})
}

func TestSearchClaims(t *testing.T) {
	t.Parallel()

	t.Run("all filters", func(t *testing.T) {
		t.Parallel()
		h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "4995401", q.Get("patient"))
			assert.Equal(t, "ge2024-01-01", q.Get("service-date"))
			assert.Equal(t, []string{"ge2024-01-01", "le2024-12-31"}, q["service-date"])
			assert.Equal(t, "pde", q.Get("type"))
			_, _ = w.Write([]byte(`{"resourceType":"Bundle","total":5}`))
		})

		result, err := h.searchClaims(authedContext("4995401"), toolRequest(map[string]interface{}{
			"service_date_start": "2024-01-01",
			"service_date_end":   "2024-12-31",
			"claim_type":         "pde",
		}))
		require.NoError(t, err)

		out := structured(t, result)
		filters, ok := out["filters"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "pde", filters["claim_type"])
		assert.NotNil(t, out["results"])
	})

	t.Run("no filters", func(t *testing.T) {
		t.Parallel()
		h := newFHIRServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "4995401", q.Get("patient"))
			assert.Empty(t, q.Get("service-date"))
			assert.Empty(t, q.Get("type"))
			_, _ = w.Write([]byte(`{"resourceType":"Bundle"}`))
		})

		_, err := h.searchClaims(authedContext("4995401"), toolRequest(nil))
		require.NoError(t, err)
	})
}
