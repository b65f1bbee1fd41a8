// Package networking provides the HTTP transport abstraction and loopback
// port helpers used by the auth core.
package networking

import (
	"net/http"
	"time"
)

// HTTPTimeout is the timeout for outgoing HTTP requests.
const HTTPTimeout = 30 * time.Second

// HTTPDoer is the transport abstraction injected into every component that
// talks to an identity provider. The desktop host may substitute its native
// networking stack; tests substitute recording fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultClient returns an HTTP client with conservative timeouts suitable
// for discovery and token-endpoint traffic.
func DefaultClient() *http.Client {
	return &http.Client{
		Timeout: HTTPTimeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}
}
