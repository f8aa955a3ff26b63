package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/cryptox"
	"github.com/dmitrijs2005/deviceguard/internal/dbx"
	"github.com/dmitrijs2005/deviceguard/internal/keystore/migrations"
	"github.com/pressly/goose/v3"
	"github.com/rcrowley/go-metrics"
	_ "modernc.org/sqlite"
)

const (
	saltKey     = "kek_salt"
	verifierKey = "kek_verifier"

	loadKeyQuery    = `SELECT material FROM keys WHERE alias = ?`
	createKeyQuery  = `INSERT INTO keys (alias, material, created_at) VALUES (?, ?, ?) ON CONFLICT(alias) DO NOTHING`
	getMetaQuery    = `SELECT value FROM metadata WHERE key = ?`
	insertMetaQuery = `INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`
)

var (
	loadSQLiteTimer   = metrics.GetOrRegisterTimer("keystore.sqlite.load", nil)
	createSQLiteTimer = metrics.GetOrRegisterTimer("keystore.sqlite.create", nil)
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// migrateAttempts bounds retries when another process is migrating the
// same file at the same time.
const migrateAttempts = 3

// migrateMu guards goose's package-level settings.
var migrateMu sync.Mutex

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	var err error
	for i := 0; i < migrateAttempts; i++ {
		// a concurrent first run may create goose's version table under us
		if err = gooseUpContext(ctx, db, "."); err == nil {
			return nil
		}
	}
	return err
}

// withSQLiteParams adds a busy timeout, so other processes holding the file
// are waited for rather than failing with SQLITE_BUSY, and makes every
// transaction take the write lock on BEGIN.
func withSQLiteParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_txlock=immediate"
}

// SQLiteStore keeps key material in a SQLite database, sealed with AES-GCM
// under a key-encryption key derived from a passphrase. The derivation salt
// and a verifier of the KEK live in the metadata table, so opening the store
// with the wrong passphrase fails up front.
type SQLiteStore struct {
	db  *sql.DB
	kek []byte
}

// OpenSQLite opens (creating if needed) the database at dsn and unlocks it
// with passphrase. passphrase is not retained.
func OpenSQLite(ctx context.Context, dsn string, passphrase []byte) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withSQLiteParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrKeyStoreUnavailable, dsn, err)
	}
	// Serialise writers; SQLite rejects concurrent writes with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := newSQLiteStore(ctx, db, passphrase)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteStore(ctx context.Context, db *sql.DB, passphrase []byte) (*SQLiteStore, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrKeyStoreUnavailable, err)
	}

	var kek []byte
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		salt, err := getOrInitMeta(ctx, tx, saltKey, cryptox.NewSalt)
		if err != nil {
			return err
		}

		kek = cryptox.DeriveMasterKey(passphrase, salt)

		verifier, err := getOrInitMeta(ctx, tx, verifierKey, func() ([]byte, error) {
			return cryptox.MakeVerifier(kek), nil
		})
		if err != nil {
			return err
		}
		if !cryptox.CheckVerifier(kek, verifier) {
			return errors.New("wrong passphrase")
		}
		return nil
	})
	if err != nil {
		common.WipeByteArray(kek)
		return nil, fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}

	return &SQLiteStore{db: db, kek: kek}, nil
}

// getOrInitMeta returns the metadata value under key, storing init() first
// if the key is absent.
func getOrInitMeta(ctx context.Context, tx dbx.DBTX, key string, init func() ([]byte, error)) ([]byte, error) {
	var value []byte
	err := tx.QueryRowContext(ctx, getMetaQuery, key).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get metadata[%s]: %w", key, err)
	}

	value, err = init()
	if err != nil {
		return nil, err
	}
	inserted, err := dbx.InsertIfAbsent(ctx, tx, insertMetaQuery, key, value)
	if err != nil {
		return nil, fmt.Errorf("set metadata[%s]: %w", key, err)
	}
	if !inserted {
		// another process initialised the store first
		if err := tx.QueryRowContext(ctx, getMetaQuery, key).Scan(&value); err != nil {
			return nil, fmt.Errorf("get metadata[%s]: %w", key, err)
		}
	}
	return value, nil
}

func (s *SQLiteStore) Load(ctx context.Context, alias string) ([]byte, error) {
	defer loadSQLiteTimer.UpdateSince(time.Now())

	var sealed []byte
	err := s.db.QueryRowContext(ctx, loadKeyQuery, alias).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrKeyStoreUnavailable, alias, err)
	}

	material, err := cryptox.Open(s.kek, sealed, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("%w: unseal %s: %v", ErrKeyStoreUnavailable, alias, err)
	}
	return material, nil
}

func (s *SQLiteStore) Create(ctx context.Context, alias string, material []byte) (bool, error) {
	defer createSQLiteTimer.UpdateSince(time.Now())

	sealed, err := cryptox.Seal(s.kek, material, []byte(alias))
	if err != nil {
		return false, fmt.Errorf("%w: seal %s: %v", ErrKeyStoreUnavailable, alias, err)
	}

	created, err := dbx.InsertIfAbsent(ctx, s.db, createKeyQuery, alias, sealed, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("%w: create %s: %v", ErrKeyStoreUnavailable, alias, err)
	}
	return created, nil
}

// Close wipes the KEK and closes the database.
func (s *SQLiteStore) Close() error {
	common.WipeByteArray(s.kek)
	return s.db.Close()
}
