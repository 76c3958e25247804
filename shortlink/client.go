// shortlink/client.go
package shortlink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pvuminhtri-cloud/kiemcoinnao/utils"
)

// Network identifies one external shortlink provider.
type Network string

const (
	NetworkTraffictot Network = "traffictot"
	NetworkUptolink   Network = "uptolink"
	NetworkUptolink2  Network = "uptolink2"
	NetworkClick1s    Network = "click1s"
	NetworkLayma      Network = "layma"
	NetworkSite2s     Network = "site2s"
	NetworkBbmkts     Network = "bbmkts"
)

// Networks is the closed set of supported providers. Task configuration is
// validated against it at load time; an unknown network fails fast instead
// of silently defaulting to anything.
var Networks = []Network{
	NetworkTraffictot,
	NetworkUptolink,
	NetworkUptolink2,
	NetworkClick1s,
	NetworkLayma,
	NetworkSite2s,
	NetworkBbmkts,
}

// Known reports whether name is a supported provider.
func Known(name string) bool {
	for _, n := range Networks {
		if string(n) == name {
			return true
		}
	}
	return false
}

// Endpoint is one provider's API location and credential.
type Endpoint struct {
	APIURL string
	Token  string
}

// Client calls the external shortlink providers. Providers are best-effort
// with no SLA: any of them may be slow, down, or return garbage, and every
// failure must stay retryable for the caller.
type Client struct {
	Endpoints map[Network]Endpoint
	HTTP      *http.Client
}

// FromEnv builds a client from SHORTLINK_<NETWORK>_URL and
// SHORTLINK_<NETWORK>_TOKEN pairs. A network missing either var is left
// unconfigured and errors at call time, not at boot.
func FromEnv() *Client {
	endpoints := make(map[Network]Endpoint, len(Networks))
	for _, n := range Networks {
		prefix := "SHORTLINK_" + strings.ToUpper(string(n))
		apiURL := os.Getenv(prefix + "_URL")
		token := os.Getenv(prefix + "_TOKEN")
		if apiURL == "" || token == "" {
			continue
		}
		endpoints[n] = Endpoint{APIURL: apiURL, Token: token}
	}
	return &Client{Endpoints: endpoints, HTTP: utils.HTTPClient}
}

type shortenResponse struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// Shorten exchanges longURL for a shortened link on the given network.
// Non-2xx responses, malformed bodies and empty results are all errors.
func (c *Client) Shorten(ctx context.Context, longURL, network string) (string, error) {
	ep, ok := c.Endpoints[Network(network)]
	if !ok {
		return "", fmt.Errorf("shortlink network %q is not configured", network)
	}

	reqURL := fmt.Sprintf("%s?api=%s&url=%s", ep.APIURL, url.QueryEscape(ep.Token), url.QueryEscape(longURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build shorten request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("call shortlink provider %s: %w", network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("shortlink provider %s returned status %d: %s", network, resp.StatusCode, string(body))
	}

	var body shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode shortlink response from %s: %w", network, err)
	}
	if body.Status != "success" || body.ShortenedURL == "" {
		return "", fmt.Errorf("shortlink provider %s rejected the link: %s", network, body.Message)
	}
	return body.ShortenedURL, nil
}
