// Package netx builds the HTTP client shared by the agent's network
// components.
package netx

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout is used for any zero field of Timeouts.
const DefaultTimeout = 30 * time.Second

// Timeouts caps the phases of a single exchange.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// WithDefaults fills zero fields with DefaultTimeout.
func (t Timeouts) WithDefaults() Timeouts {
	if t.Connect <= 0 {
		t.Connect = DefaultTimeout
	}
	if t.Read <= 0 {
		t.Read = DefaultTimeout
	}
	if t.Write <= 0 {
		t.Write = DefaultTimeout
	}
	return t
}

// NewHTTPClient returns a client safe for concurrent use whose dial is
// bounded by Connect, response headers by Read, and the whole exchange by
// Connect+Write+Read. Redirects are not followed: a 3xx is returned to the
// caller as is, since following one would turn a POST into a bodiless GET.
func NewHTTPClient(t Timeouts) *http.Client {
	t = t.WithDefaults()

	dialer := &net.Dialer{
		Timeout:   t.Connect,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   t.Connect,
		ResponseHeaderTimeout: t.Read,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       t.Connect + t.Write + t.Read,
		CheckRedirect: NoRedirect,
	}
}

// NoRedirect is a CheckRedirect policy that stops at the first response.
func NoRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
