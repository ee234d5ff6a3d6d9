package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"pluginstore.shikanime.studio/internal/plugin"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(
		WithToken("token"),
		WithBaseURL(server.URL),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)
	return c
}

func TestReadme(t *testing.T) {
	t.Parallel()

	content := base64.StdEncoding.EncodeToString([]byte("# lazy.nvim\n\nA modern plugin manager for Neovim\n"))
	// The contents API wraps base64 payloads at 60 columns.
	wrapped := content[:20] + "\n" + content[20:]
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/folke/lazy.nvim/readme", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  wrapped,
		})
	})

	got, err := c.Readme(context.Background(), "folke", "lazy.nvim")
	require.NoError(t, err)
	assert.Equal(t, "# lazy.nvim\n\nA modern plugin manager for Neovim\n", string(got))
}

func TestReadmeNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	})

	_, err := c.Readme(context.Background(), "folke", "missing")
	require.ErrorIs(t, err, plugin.ErrProtocol)
	var pe *plugin.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.Equal(t, "Not Found", pe.Body)
}

func TestReadmeBadEncoding(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"encoding": "base64", "content": "!!!"}`))
	})

	_, err := c.Readme(context.Background(), "folke", "lazy.nvim")
	assert.ErrorIs(t, err, plugin.ErrParse)
}

func TestReadmeTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()
	c, err := NewClient(WithBaseURL(base), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)

	_, err = c.Readme(context.Background(), "folke", "lazy.nvim")
	assert.ErrorIs(t, err, plugin.ErrTransport)
}
