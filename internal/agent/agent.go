// Package agent sequences the device-side actions: collect attributes,
// build the snapshot, then either upload it to the collector or store it
// encrypted on disk.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/device"
	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/keyfetch"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/uploader"
)

// ErrHealthUnavailable is returned by Ping when no health checker is set.
var ErrHealthUnavailable = errors.New("agent: health check not configured")

// Uploader posts a sealed snapshot; see uploader.Uploader.
type Uploader interface {
	Upload(ctx context.Context, endpoint string, payload any, keyText string) <-chan uploader.Result
}

// SnapshotStore persists encrypted snapshots; see securestore.Store.
type SnapshotStore interface {
	EncryptAndSave(ctx context.Context, path string, plaintext []byte) error
	Decrypt(ctx context.Context, path string) ([]byte, error)
}

// HealthChecker reports whether the collector is serving.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Deps are the collaborators an Agent drives. Health may be nil.
type Deps struct {
	Attributes device.Provider
	Keys       keyfetch.Fetcher
	Uploader   Uploader
	Store      SnapshotStore
	Health     HealthChecker
	// UploadURL is the full URL of the collector's upload endpoint.
	UploadURL string
}

type Agent struct {
	Deps
	now func() time.Time
	log logging.Logger
}

func New(d Deps, log logging.Logger) *Agent {
	if log == nil {
		log = logging.Nop()
	}
	return &Agent{Deps: d, now: time.Now, log: log.With("module", "agent")}
}

// Snapshot collects attributes and assembles the report. A provider failure
// or a provider with no data yields a report of placeholders.
func (a *Agent) Snapshot(ctx context.Context) *device.Report {
	attrs, err := a.Attributes.Attributes(ctx)
	if err != nil {
		a.log.Warn(ctx, "attribute provider failed, reporting no data", "error", err)
		attrs = nil
	} else if attrs == nil {
		a.log.Warn(ctx, "attribute provider returned no data")
	}
	return device.BuildReport(attrs, a.now())
}

// TryUploadSnapshot fetches the collector's key, seals a fresh snapshot and
// posts it. It returns true only when the collector accepted the upload.
func (a *Agent) TryUploadSnapshot(ctx context.Context) bool {
	report := a.Snapshot(ctx)

	keyText, err := a.Keys.FetchKey(ctx)
	if err != nil {
		a.log.Error(ctx, "upload skipped: public key unavailable", "kind", kindOf(err), "error", err)
		return false
	}

	res := <-a.Uploader.Upload(ctx, a.UploadURL, report, keyText)
	if !res.OK {
		a.log.Error(ctx, "snapshot upload failed", "kind", kindOf(res.Err), "status", res.StatusCode)
		return false
	}

	a.log.Info(ctx, "snapshot uploaded", "status", res.StatusCode)
	return true
}

// ExportSnapshotToFile stores a fresh snapshot encrypted at path.
func (a *Agent) ExportSnapshotToFile(ctx context.Context, path string) bool {
	if err := a.exportSnapshot(ctx, path); err != nil {
		a.log.Error(ctx, "snapshot export failed", "path", path, "error", err)
		return false
	}
	a.log.Info(ctx, "snapshot exported", "path", path)
	return true
}

func (a *Agent) exportSnapshot(ctx context.Context, path string) error {
	b, err := json.MarshalIndent(a.Snapshot(ctx), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.Store.EncryptAndSave(ctx, path, b)
}

// ReadSnapshotFile decrypts a file written by ExportSnapshotToFile.
func (a *Agent) ReadSnapshotFile(ctx context.Context, path string) (*device.Report, error) {
	b, err := a.Store.Decrypt(ctx, path)
	if err != nil {
		return nil, err
	}

	var r device.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &r, nil
}

// Ping checks the collector's health endpoint.
func (a *Agent) Ping(ctx context.Context) error {
	if a.Health == nil {
		return ErrHealthUnavailable
	}
	return a.Health.Check(ctx)
}

// ExportFileName is the default name of an exported snapshot.
func ExportFileName(now time.Time) string {
	return "device_info_" + now.Format("20060102_150405") + ".bin"
}

// ExportPath joins dir with ExportFileName(now).
func ExportPath(dir string, now time.Time) string {
	return filepath.Join(dir, ExportFileName(now))
}

func kindOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, keyfetch.ErrHTTPStatus), errors.Is(err, uploader.ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, keyfetch.ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, keyfetch.ErrNetwork), errors.Is(err, uploader.ErrNetworkFailure):
		return "network"
	case errors.Is(err, uploader.ErrResponseReadFailed):
		return "response_read"
	case errors.Is(err, envelope.ErrInvalidPublicKey):
		return "invalid_public_key"
	case errors.Is(err, envelope.ErrKeyGenFailed):
		return "key_gen"
	case errors.Is(err, envelope.ErrCipherInitFailed):
		return "cipher_init"
	default:
		return "other"
	}
}
