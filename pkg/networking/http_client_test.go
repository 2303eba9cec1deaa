package networking

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	client := NewHttpClientBuilder().Build()
	assert.Equal(t, HttpTimeout, client.Timeout)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	client := NewHttpClientBuilder().WithTimeout(5 * time.Second).Build()
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestUserAgentHeader(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := NewHttpClientBuilder().Build()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, strings.HasPrefix(gotUA, "bluebutton-mcp/"), "unexpected User-Agent %q", gotUA)
}
