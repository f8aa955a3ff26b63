package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/server/auth"
	"github.com/dmitrijs2005/deviceguard/internal/server/snapshots"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rcrowley/go-metrics"
)

var (
	uploadsAccepted = metrics.GetOrRegisterCounter("collector.uploads.accepted", nil)
	uploadsRejected = metrics.GetOrRegisterCounter("collector.uploads.rejected", nil)
	archiveFailures = metrics.GetOrRegisterCounter("collector.archive.failures", nil)
)

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	ID      string `json:"id"`
	Receipt string `json:"receipt"`
}

// SnapshotResponse is returned by the snapshot lookup.
type SnapshotResponse struct {
	ID         string          `json:"id"`
	Scheme     string          `json:"scheme"`
	ReceivedAt string          `json:"received_at"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

type StatsResponse struct {
	Snapshots int64 `json:"snapshots"`
}

func (s *Server) getPublicKey(c echo.Context) error {
	return c.String(http.StatusOK, s.publicKeyText)
}

func (s *Server) postUpload(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		uploadsRejected.Inc(1)
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	plaintext, scheme, err := s.open(body)
	if err != nil {
		uploadsRejected.Inc(1)
		s.logger.Warn(ctx, "upload rejected", "error", err, "size", len(body))
		return echo.NewHTTPError(http.StatusBadRequest, common.ErrInvalidEnvelope.Error())
	}

	snap := &snapshots.Snapshot{
		ID:         uuid.NewString(),
		Scheme:     scheme.String(),
		Payload:    plaintext,
		Envelope:   body,
		ReceivedAt: s.now().UTC(),
	}

	if err := s.repo.Save(ctx, snap); err != nil {
		s.logger.Error(ctx, "snapshot save failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, common.ErrorInternal.Error())
	}

	if key, err := s.archiver.Archive(ctx, snap.ID, snap.ReceivedAt, body); err != nil {
		archiveFailures.Inc(1)
		s.logger.Error(ctx, "envelope archive failed", "id", snap.ID, "error", err)
	} else if key != "" {
		s.logger.Debug(ctx, "envelope archived", "id", snap.ID, "key", key)
	}

	receipt, err := auth.GenerateReceipt(snap.ID, body, s.receiptSecret, snap.ReceivedAt, s.receiptValidity)
	if err != nil {
		s.logger.Error(ctx, "receipt signing failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, common.ErrorInternal.Error())
	}

	uploadsAccepted.Inc(1)
	s.logger.Info(ctx, "snapshot accepted", "id", snap.ID, "scheme", snap.Scheme, "size", len(plaintext))
	return c.JSON(http.StatusCreated, UploadResponse{ID: snap.ID, Receipt: receipt})
}

// open decodes body as an envelope and tries each scheme in turn. The
// plaintext must be a JSON document.
func (s *Server) open(body []byte) ([]byte, envelope.Scheme, error) {
	var env envelope.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, err
	}
	if env.EncryptedData == "" || env.EncryptedKey == "" {
		return nil, 0, errors.New("missing envelope field")
	}

	var errs []error
	for _, o := range s.openers {
		pt, err := o.Open(&env)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !json.Valid(pt) {
			return nil, 0, errors.New("payload is not JSON")
		}
		return pt, o.Scheme(), nil
	}
	return nil, 0, errors.Join(errs...)
}

// getSnapshot returns a stored snapshot to the holder of its receipt, passed
// as a bearer token.
func (s *Server) getSnapshot(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, common.ErrInvalidToken.Error())
	}

	r, err := auth.ParseReceipt(token, s.receiptSecret)
	if err != nil || r.SnapshotID != id {
		return echo.NewHTTPError(http.StatusUnauthorized, common.ErrInvalidToken.Error())
	}

	snap, err := s.repo.Get(ctx, id)
	if errors.Is(err, snapshots.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, common.ErrorNotFound.Error())
	}
	if err != nil {
		s.logger.Error(ctx, "snapshot load failed", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, common.ErrorInternal.Error())
	}
	if auth.EnvelopeDigest(snap.Envelope) != r.EnvelopeSHA256 {
		return echo.NewHTTPError(http.StatusUnauthorized, common.ErrInvalidToken.Error())
	}

	return c.JSON(http.StatusOK, SnapshotResponse{
		ID:         snap.ID,
		Scheme:     snap.Scheme,
		ReceivedAt: snap.ReceivedAt.Format(time.RFC3339),
		Snapshot:   snap.Payload,
	})
}

func (s *Server) getStats(c echo.Context) error {
	n, err := s.repo.Count(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, common.ErrorInternal.Error())
	}
	return c.JSON(http.StatusOK, StatsResponse{Snapshots: n})
}
