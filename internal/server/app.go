// Package server wires and runs the collector: it loads the RSA key, opens
// snapshot storage and the optional archive, and serves the HTTP API and the
// gRPC health endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/server/archive"
	"github.com/dmitrijs2005/deviceguard/internal/server/config"
	"github.com/dmitrijs2005/deviceguard/internal/server/httpapi"
	"github.com/dmitrijs2005/deviceguard/internal/server/keys"
	"github.com/dmitrijs2005/deviceguard/internal/server/snapshots"

	gs "github.com/dmitrijs2005/deviceguard/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	key, created, err := keys.LoadOrGenerate(c.PrivateKeyPath, keys.DefaultBits)
	if err != nil {
		return nil, fmt.Errorf("key init error: %w", err)
	}
	if created {
		logger.Info(ctx, "generated collector key", "path", c.PrivateKeyPath)
	}

	app := &App{config: c, logger: logger}

	var repo snapshots.Repository = snapshots.NewMemoryRepository()
	if c.DatabaseDSN != "" {
		db, err := snapshots.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		repo = snapshots.NewPostgresRepository(db)
	} else {
		logger.Warn(ctx, "no database configured, snapshots are kept in memory")
	}

	var arch archive.Archiver = archive.NopArchiver{}
	if c.S3Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		arch = a
	}

	hs, err := httpapi.NewServer(httpapi.Options{
		Address:         c.HTTPAddr,
		PrivateKey:      key,
		Repository:      repo,
		Archiver:        arch,
		ReceiptSecret:   []byte(c.ReceiptSecret),
		ReceiptValidity: c.ReceiptValidity,
	}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.http = hs
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives, or either server
// fails. A failing server stops the other.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, "HTTP server failed", "error", err)
			app.grpc.SetServing(false)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, "gRPC server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()
	app.Close()
	app.logger.Info(ctx, "App stopped")
}

func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
}
