// Package uploader seals a device snapshot for the collector and posts it
// asynchronously.
//
// Upload performs the cryptographic steps on the caller's goroutine and the
// HTTP exchange on its own goroutine. Its outcome is delivered exactly once on
// the returned channel, never before Upload has returned.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/netx"
	"github.com/rcrowley/go-metrics"
)

var (
	ErrNetworkFailure     = errors.New("uploader: network failure")
	ErrHTTPStatus         = errors.New("uploader: unexpected HTTP status")
	ErrResponseReadFailed = errors.New("uploader: response read failed")
)

var (
	attemptCounter = metrics.GetOrRegisterCounter("uploader.attempts", nil)
	successCounter = metrics.GetOrRegisterCounter("uploader.success", nil)
	failureCounter = metrics.GetOrRegisterCounter("uploader.failure", nil)
	latencyTimer   = metrics.GetOrRegisterTimer("uploader.latency", nil)
)

// StatusError carries the status code and body of a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("uploader: server returned %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// Result is the single outcome of an Upload.
type Result struct {
	OK         bool
	StatusCode int
	Body       string
	Err        error
}

// Uploader is safe for concurrent use; calls share nothing but the HTTP
// client.
type Uploader struct {
	http   *http.Client
	sealer *envelope.Sealer
	log    logging.Logger
}

// New returns an Uploader posting with httpClient and sealing with sealer.
func New(httpClient *http.Client, sealer *envelope.Sealer, log logging.Logger) *Uploader {
	if log == nil {
		log = logging.Nop()
	}
	// a copy, so the caller's client keeps its own redirect policy
	hc := *httpClient
	hc.CheckRedirect = netx.NoRedirect
	return &Uploader{
		http:   &hc,
		sealer: sealer,
		log:    log.With("module", "uploader", "scheme", sealer.Scheme().String()),
	}
}

// Upload marshals payload to JSON (a []byte or json.RawMessage is sent as
// is), seals it for the key in keyText and posts the envelope to endpoint.
//
// The returned channel receives exactly one Result and is then closed. If
// any step before the POST fails, no request is made and the failure is
// delivered the same way. The POST ignores cancellation of ctx and is bounded
// only by the HTTP client's timeouts.
func (u *Uploader) Upload(ctx context.Context, endpoint string, payload any, keyText string) <-chan Result {
	done := make(chan Result, 1)
	attemptCounter.Inc(1)

	body, err := u.prepare(payload, keyText)
	if err != nil {
		u.log.Error(ctx, "upload aborted before sending", "error", err)
		go u.finish(done, Result{Err: err})
		return done
	}

	reqCtx := context.WithoutCancel(ctx)
	go func() {
		start := time.Now()
		res := u.post(reqCtx, endpoint, body)
		latencyTimer.UpdateSince(start)

		if res.OK {
			u.log.Info(reqCtx, "upload accepted", "status", res.StatusCode, "response", res.Body)
		} else {
			u.log.Error(reqCtx, "upload failed", "status", res.StatusCode, "response", res.Body, "error", res.Err)
		}
		u.finish(done, res)
	}()
	return done
}

// UploadFunc is Upload with a completion callback. onComplete runs exactly
// once, on a goroutine other than the caller's.
func (u *Uploader) UploadFunc(ctx context.Context, endpoint string, payload any, keyText string, onComplete func(ok bool)) {
	ch := u.Upload(ctx, endpoint, payload, keyText)
	go func() {
		res := <-ch
		onComplete(res.OK)
	}()
}

func (u *Uploader) finish(done chan<- Result, res Result) {
	if res.OK {
		successCounter.Inc(1)
	} else {
		failureCounter.Inc(1)
	}
	done <- res
	close(done)
}

func (u *Uploader) prepare(payload any, keyText string) ([]byte, error) {
	var plaintext []byte
	switch p := payload.(type) {
	case []byte:
		plaintext = p
	case json.RawMessage:
		plaintext = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		plaintext = b
		defer common.WipeByteArray(b)
	}

	pub, err := envelope.ParsePublicKey(keyText)
	if err != nil {
		return nil, err
	}

	env, err := u.sealer.Seal(plaintext, pub)
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

func (u *Uploader) post(ctx context.Context, endpoint string, body []byte) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrNetworkFailure, err)}
	}
	req.Header.Set("Content-Type", common.JSONContentType)

	resp, err := u.http.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrNetworkFailure, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrResponseReadFailed, err)}
	}

	res := Result{StatusCode: resp.StatusCode, Body: string(respBody)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = &StatusError{Code: resp.StatusCode, Body: res.Body}
		return res
	}
	res.OK = true
	return res
}
