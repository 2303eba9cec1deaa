// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package bluebutton

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/auth"
)

// toolHandler serves the Blue Button tools. Each call reads the verified
// access token from the request context, so a single server instance
// serves any number of concurrent users.
type toolHandler struct {
	fhir *Client
}

// RegisterTools adds the Blue Button tools to an MCP server.
func RegisterTools(mcpServer *server.MCPServer, fhir *Client) {
	handler := &toolHandler{fhir: fhir}

	mcpServer.AddTool(mcp.Tool{
		Name: "get_patient_info",
		Description: "Get patient demographic and personal information. " +
			"Returns the FHIR Patient resource with name, address, birth date, etc. " +
			"Requires the patient/Patient.rs scope.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.getPatientInfo)

	mcpServer.AddTool(mcp.Tool{
		Name: "get_coverage_info",
		Description: "Get Medicare and supplemental coverage information. " +
			"Returns FHIR Coverage resources showing insurance plans and periods. " +
			"Requires the patient/Coverage.rs scope.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.getCoverageInfo)

	mcpServer.AddTool(mcp.Tool{
		Name: "get_explanation_of_benefit",
		Description: "Get Medicare claim information (Explanation of Benefit records). " +
			"Returns FHIR ExplanationOfBenefit resources with claim details. " +
			"Requires the patient/ExplanationOfBenefit.rs scope.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"eob_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional specific EOB ID. If not provided, returns all EOBs.",
				},
			},
		},
	}, handler.getExplanationOfBenefit)

	mcpServer.AddTool(mcp.Tool{
		Name:        "search_claims",
		Description: "Search for Medicare claims with service date and claim type filters.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"service_date_start": map[string]interface{}{
					"type":        "string",
					"description": "Filter claims from this date (YYYY-MM-DD)",
				},
				"service_date_end": map[string]interface{}{
					"type":        "string",
					"description": "Filter claims to this date (YYYY-MM-DD)",
				},
				"claim_type": map[string]interface{}{
					"type":        "string",
					"description": "Type of claim (carrier, inpatient, outpatient, snf, hospice, hha, dme, pde)",
				},
			},
		},
	}, handler.searchClaims)
}

// patientFromContext pulls the verified token and its patient ID out of
// the request context. A nil error result means both are usable.
func patientFromContext(ctx context.Context) (*auth.AccessToken, string, *mcp.CallToolResult) {
	token, ok := auth.AccessTokenFromContext(ctx)
	if !ok {
		return nil, "", errorResult("Not authenticated")
	}

	patientID, _ := token.Claims["patient"].(string)
	if patientID == "" {
		return nil, "", errorResult("No patient ID in token")
	}
	return token, patientID, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(map[string]interface{}{"error": msg})
}

// apiErrorResult maps a FHIR client failure onto the tool error shape.
func apiErrorResult(err error) *mcp.CallToolResult {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultStructuredOnly(map[string]interface{}{
			"error":  apiErr.Error(),
			"detail": apiErr.Detail,
		})
	}
	return errorResult(fmt.Sprintf("request failed: %v", err))
}

func (h *toolHandler) getPatientInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, patientID, errRes := patientFromContext(ctx)
	if errRes != nil {
		return errRes, nil
	}

	data, err := h.fhir.Get(ctx, token.Token, fmt.Sprintf("fhir/Patient/%s", patientID))
	if err != nil {
		return apiErrorResult(err), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"patient_id": patientID,
		"data":       data,
	}), nil
}

func (h *toolHandler) getCoverageInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, patientID, errRes := patientFromContext(ctx)
	if errRes != nil {
		return errRes, nil
	}

	data, err := h.fhir.Get(ctx, token.Token, fmt.Sprintf("fhir/Coverage?beneficiary=%s", patientID))
	if err != nil {
		return apiErrorResult(err), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"patient_id": patientID,
		"coverage":   data,
	}), nil
}

func (h *toolHandler) getExplanationOfBenefit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, patientID, errRes := patientFromContext(ctx)
	if errRes != nil {
		return errRes, nil
	}

	var args struct {
		EOBID string `json:"eob_id"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	endpoint := fmt.Sprintf("fhir/ExplanationOfBenefit?patient=%s", patientID)
	if args.EOBID != "" {
		endpoint = fmt.Sprintf("fhir/ExplanationOfBenefit/%s", args.EOBID)
	}

	data, err := h.fhir.Get(ctx, token.Token, endpoint)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"patient_id": patientID,
		"claims":     data,
	}), nil
}

func (h *toolHandler) searchClaims(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, patientID, errRes := patientFromContext(ctx)
	if errRes != nil {
		return errRes, nil
	}

	var args struct {
		ServiceDateStart string `json:"service_date_start"`
		ServiceDateEnd   string `json:"service_date_end"`
		ClaimType        string `json:"claim_type"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	endpoint := fmt.Sprintf("fhir/ExplanationOfBenefit?patient=%s", patientID)
	if args.ServiceDateStart != "" {
		endpoint += fmt.Sprintf("&service-date=ge%s", args.ServiceDateStart)
	}
	if args.ServiceDateEnd != "" {
		endpoint += fmt.Sprintf("&service-date=le%s", args.ServiceDateEnd)
	}
	if args.ClaimType != "" {
		endpoint += fmt.Sprintf("&type=%s", args.ClaimType)
	}

	data, err := h.fhir.Get(ctx, token.Token, endpoint)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"patient_id": patientID,
		"filters": map[string]interface{}{
			"service_date_start": args.ServiceDateStart,
			"service_date_end":   args.ServiceDateEnd,
			"claim_type":         args.ClaimType,
		},
		"results": data,
	}), nil
}
