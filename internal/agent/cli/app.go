package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/agent"
	"github.com/dmitrijs2005/deviceguard/internal/agent/config"
	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/device"
	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/filex"
	"github.com/dmitrijs2005/deviceguard/internal/keyfetch"
	"github.com/dmitrijs2005/deviceguard/internal/keystore"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/netx"
	"github.com/dmitrijs2005/deviceguard/internal/securestore"
	"github.com/dmitrijs2005/deviceguard/internal/uploader"
)

var (
	errUploadFailed = errors.New("upload failed")
	errExportFailed = errors.New("export failed")
)

// snapshotAgent is the part of agent.Agent the commands use.
type snapshotAgent interface {
	TryUploadSnapshot(ctx context.Context) bool
	ExportSnapshotToFile(ctx context.Context, path string) bool
	ReadSnapshotFile(ctx context.Context, path string) (*device.Report, error)
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	agent   snapshotAgent
	dataDir string
	out     io.Writer
	now     func() time.Time
	closers []io.Closer
}

// NewApp wires the agent described by c. It prompts for the key store
// passphrase when a persistent key store is configured and
// DEVICEGUARD_KEYSTORE_PASSPHRASE is unset.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	app := &App{config: c, out: os.Stdout, now: time.Now}

	dataDir, err := filex.EnsurePrivateDir(c.DataDir)
	if err != nil {
		return nil, err
	}
	app.dataDir = dataDir

	scheme, err := envelope.ParseScheme(c.Scheme)
	if err != nil {
		return nil, err
	}

	store, err := app.openKeyStore(ctx)
	if err != nil {
		return nil, err
	}
	keys := keystore.NewProvider(store, keystore.WithLogger(log))
	app.closers = append(app.closers, keys)

	var attrs device.Provider = &device.HostProvider{}
	if c.AttributesFile != "" {
		sp, err := device.LoadStaticFile(c.AttributesFile)
		if err != nil {
			app.Close()
			return nil, err
		}
		attrs = sp
	}

	httpClient := netx.NewHTTPClient(c.Timeouts())
	deps := agent.Deps{
		Attributes: attrs,
		Keys:       keyfetch.NewClient(c.ServerURL, httpClient, log),
		Uploader:   uploader.New(httpClient, envelope.NewSealer(scheme), log),
		Store:      securestore.New(keys, c.KeyAlias, log),
		UploadURL:  strings.TrimRight(c.ServerURL, "/") + common.UploadRoute,
	}

	if c.HealthAddr != "" {
		hc, err := agent.NewGRPCHealthChecker(c.HealthAddr)
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Health = hc
		app.closers = append(app.closers, hc)
	}

	app.agent = agent.New(deps, log)
	return app, nil
}

func (a *App) openKeyStore(ctx context.Context) (keystore.Store, error) {
	if a.config.KeyStorePath == config.MemoryKeyStore {
		return keystore.NewMemoryStore(), nil
	}

	path := a.config.KeyStorePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.dataDir, path)
	}

	pass, err := keyStorePassphrase(a.out)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	defer common.WipeByteArray(pass)

	s, err := keystore.OpenSQLite(ctx, path, pass)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s)
	return s, nil
}

// Run executes args as a single command, or starts the interactive loop when
// args is empty. It returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer a.Close()

	if len(args) == 0 {
		runREPL(ctx, a, bufio.NewScanner(os.Stdin))
		return 0
	}

	if _, err := dispatch(ctx, a, args); err != nil {
		if !errors.Is(err, errUsage) {
			printlnFn("Error:", err)
		}
		return 1
	}
	return 0
}

// Close releases keys, the key store and network clients, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func (a *App) Upload(ctx context.Context) error {
	if !a.agent.TryUploadSnapshot(ctx) {
		return errUploadFailed
	}
	printlnFn("Snapshot uploaded")
	return nil
}

func (a *App) Export(ctx context.Context, path string) error {
	if path == "" {
		path = agent.ExportPath(a.dataDir, a.now())
	}
	if !a.agent.ExportSnapshotToFile(ctx, path) {
		return errExportFailed
	}
	printlnFn("Snapshot saved to", path)
	return nil
}

func (a *App) Show(ctx context.Context, path string) error {
	r, err := a.agent.ReadSnapshotFile(ctx, path)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return err
	}
	printlnFn(string(b))
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	if err := a.agent.Ping(ctx); err != nil {
		return err
	}
	printlnFn("Collector is serving")
	return nil
}
