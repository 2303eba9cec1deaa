// Package networking provides utilities for outbound HTTP communication with
// the Blue Button API and its OAuth endpoints.
package networking

import (
	"fmt"
	"net/http"
	"time"

	"github.com/healthbridge-ai/bluebutton-mcp/pkg/versions"
)

// HttpTimeout is the timeout for outgoing HTTP requests
const HttpTimeout = 30 * time.Second

// userAgentTransport stamps the server's User-Agent on outgoing requests.
type userAgentTransport struct {
	transport http.RoundTripper
}

// RoundTrip sets the User-Agent header and forwards the request.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	newReq := req.Clone(req.Context())
	newReq.Header.Set("User-Agent", fmt.Sprintf("bluebutton-mcp/%s", versions.GetVersionInfo().Version))

	return t.transport.RoundTrip(newReq)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
}

// NewHttpClientBuilder returns a new HttpClientBuilder
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout overrides the overall client timeout.
func (b *HttpClientBuilder) WithTimeout(timeout time.Duration) *HttpClientBuilder {
	b.clientTimeout = timeout
	return b
}

// Build creates the configured HTTP client
func (b *HttpClientBuilder) Build() *http.Client {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	return &http.Client{
		Transport: &userAgentTransport{transport: transport},
		Timeout:   b.clientTimeout,
	}
}
