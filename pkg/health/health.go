// Package health provides the liveness endpoint for the MCP server.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/logger"
)

type status struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewHandler returns the /health handler. The endpoint is unauthenticated
// so load balancers can probe it.
func NewHandler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&status{
			Status:  "healthy",
			Service: serviceName,
		}); err != nil {
			logger.Errorw("failed to write health response", "error", err)
		}
	}
}
