package shortlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := &Client{
		Endpoints: map[Network]Endpoint{
			NetworkLayma: {APIURL: srv.URL, Token: "secret-token"},
		},
		HTTP: srv.Client(),
	}
	return c, srv
}

func TestShortenSuccess(t *testing.T) {
	var gotAPI, gotURL string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAPI = r.URL.Query().Get("api")
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":"https://layma.net/abc"}`))
	})
	defer srv.Close()

	short, err := c.Shorten(context.Background(), "https://kiemcoinnao.example/api/tasks/complete?key=k", "layma")
	require.NoError(t, err)
	assert.Equal(t, "https://layma.net/abc", short)
	assert.Equal(t, "secret-token", gotAPI)
	assert.Equal(t, "https://kiemcoinnao.example/api/tasks/complete?key=k", gotURL)
}

func TestShortenProviderError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.Shorten(context.Background(), "https://example.com", "layma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestShortenMalformedBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>surprise maintenance page</html>"))
	})
	defer srv.Close()

	_, err := c.Shorten(context.Background(), "https://example.com", "layma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode shortlink response")
}

func TestShortenRejectedLink(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid api token"}`))
	})
	defer srv.Close()

	_, err := c.Shorten(context.Background(), "https://example.com", "layma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api token")
}

func TestShortenUnconfiguredNetwork(t *testing.T) {
	c := &Client{Endpoints: map[Network]Endpoint{}, HTTP: http.DefaultClient}
	_, err := c.Shorten(context.Background(), "https://example.com", "bbmkts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestKnown(t *testing.T) {
	for _, n := range Networks {
		assert.True(t, Known(string(n)))
	}
	assert.False(t, Known("tinyurl"))
	assert.False(t, Known(""))
	assert.False(t, Known("LAYMA"))
}

func TestFromEnvSkipsPartialConfig(t *testing.T) {
	t.Setenv("SHORTLINK_LAYMA_URL", "https://layma.net/api")
	t.Setenv("SHORTLINK_LAYMA_TOKEN", "tok")
	t.Setenv("SHORTLINK_BBMKTS_URL", "https://bbmkts.com/api") // no token

	c := FromEnv()
	_, ok := c.Endpoints[NetworkLayma]
	assert.True(t, ok)
	_, ok = c.Endpoints[NetworkBbmkts]
	assert.False(t, ok)
}
