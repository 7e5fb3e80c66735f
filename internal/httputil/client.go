package httputil

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound call. The sensor hub lives on the
// local network, so anything slower than this means it is down.
const DefaultTimeout = 15 * time.Second

// NewClient returns an HTTP client with standard timeout configuration for
// hub API calls.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			MaxIdleConns:    4,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}
