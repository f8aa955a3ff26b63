// Package keyfetch retrieves the collector's current RSA public key.
//
// Every call performs a single unauthenticated GET; keys are never cached
// and failures are never retried.
package keyfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/rcrowley/go-metrics"
)

var (
	ErrHTTPStatus = errors.New("keyfetch: unexpected HTTP status")
	ErrEmptyBody  = errors.New("keyfetch: empty response body")
	ErrNetwork    = errors.New("keyfetch: network failure")
)

var (
	requestCounter = metrics.GetOrRegisterCounter("keyfetch.requests", nil)
	failureCounter = metrics.GetOrRegisterCounter("keyfetch.failures", nil)
	fetchTimer     = metrics.GetOrRegisterTimer("keyfetch.latency", nil)
)

// StatusError carries the status code of a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("keyfetch: server returned %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// Fetcher returns the collector's public key text.
type Fetcher interface {
	FetchKey(ctx context.Context) (string, error)
}

// Client fetches the key from <baseURL>/configured-public-key.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewClient returns a Client. httpClient is expected to carry the agent's
// timeouts (see netx.NewHTTPClient).
func NewClient(baseURL string, httpClient *http.Client, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With("module", "keyfetch"),
	}
}

// Endpoint is the URL FetchKey requests.
func (c *Client) Endpoint() string {
	return c.baseURL + common.PublicKeyRoute
}

// FetchKey returns the raw key text served by the collector, untrimmed.
func (c *Client) FetchKey(ctx context.Context) (string, error) {
	defer fetchTimer.UpdateSince(time.Now())
	requestCounter.Inc(1)

	key, err := c.fetch(ctx)
	if err != nil {
		failureCounter.Inc(1)
		c.log.Error(ctx, "public key fetch failed", "error", err)
		return "", err
	}

	c.log.Debug(ctx, "public key fetched", "length", len(key))
	return key, nil
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyBody
	}
	return string(body), nil
}

// FakeFetcher is a Fetcher returning canned values.
type FakeFetcher struct {
	Key   string
	Err   error
	Calls int
}

func (f *FakeFetcher) FetchKey(_ context.Context) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Key, nil
}
