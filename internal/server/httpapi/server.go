// Package httpapi serves the collector's HTTP API: the public key the agents
// seal against, the upload endpoint, and receipt-gated snapshot lookup.
package httpapi

import (
	"context"
	"crypto/rsa"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/server/archive"
	"github.com/dmitrijs2005/deviceguard/internal/server/keys"
	"github.com/dmitrijs2005/deviceguard/internal/server/snapshots"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// APIPrefix is the path the agent's base URL points at.
	APIPrefix = "/api"
	// MaxBodySize bounds upload request bodies.
	MaxBodySize    = "4M"
	shutdownPeriod = 5 * time.Second
)

// Options configure a Server.
type Options struct {
	Address         string
	PrivateKey      *rsa.PrivateKey
	Repository      snapshots.Repository
	Archiver        archive.Archiver
	ReceiptSecret   []byte
	ReceiptValidity time.Duration
}

type Server struct {
	echo            *echo.Echo
	address         string
	publicKeyText   string
	openers         []*envelope.Opener
	repo            snapshots.Repository
	archiver        archive.Archiver
	receiptSecret   []byte
	receiptValidity time.Duration
	now             func() time.Time
	logger          logging.Logger
}

// NewServer builds the API. Uploads sealed with either envelope scheme are
// accepted; the current scheme is tried first.
func NewServer(o Options, l logging.Logger) (*Server, error) {
	pubText, err := keys.PublicKeyText(o.PrivateKey)
	if err != nil {
		return nil, err
	}
	if o.Archiver == nil {
		o.Archiver = archive.NopArchiver{}
	}

	s := &Server{
		echo:          echo.New(),
		address:       o.Address,
		publicKeyText: pubText,
		openers: []*envelope.Opener{
			envelope.NewOpener(envelope.SchemeOAEPGCM, o.PrivateKey),
			envelope.NewOpener(envelope.SchemeLegacyPKCS1ECB, o.PrivateKey),
		},
		repo:            o.Repository,
		archiver:        o.Archiver,
		receiptSecret:   o.ReceiptSecret,
		receiptValidity: o.ReceiptValidity,
		now:             time.Now,
		logger:          l.With("module", "http_server"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.echo.Group(APIPrefix)
	api.GET(common.PublicKeyRoute, s.getPublicKey)
	api.POST(common.UploadRoute, s.postUpload, middleware.BodyLimit(MaxBodySize))
	api.GET("/snapshots/:id", s.getSnapshot)
	api.GET("/stats", s.getStats)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr is the bound address once Run is listening, or nil.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownPeriod)
		defer cancel()
		if err := s.echo.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
