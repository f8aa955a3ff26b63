package keystore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, path, passphrase string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), path, []byte(passphrase))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_CreateLoad(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "keys.db"), "pw")

	_, err := s.Load(ctx, "alias")
	require.ErrorIs(t, err, ErrKeyNotFound)

	material := bytes.Repeat([]byte{0x42}, KeySize)
	created, err := s.Create(ctx, "alias", material)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Create(ctx, "alias", bytes.Repeat([]byte{0x01}, KeySize))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Load(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, material, got)
}

func TestSQLiteStore_MaterialIsSealedAtRest(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "keys.db"), "pw")

	material := bytes.Repeat([]byte{0x42}, KeySize)
	_, err := s.Create(ctx, "alias", material)
	require.NoError(t, err)

	var raw []byte
	require.NoError(t, s.db.QueryRowContext(ctx, loadKeyQuery, "alias").Scan(&raw))
	assert.False(t, bytes.Contains(raw, material))
}

func TestSQLiteStore_ReopenWithPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")
	material := bytes.Repeat([]byte{0x07}, KeySize)

	s, err := OpenSQLite(ctx, path, []byte("correct horse"))
	require.NoError(t, err)
	_, err = s.Create(ctx, "alias", material)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	t.Run("same passphrase", func(t *testing.T) {
		s := openTemp(t, path, "correct horse")
		got, err := s.Load(ctx, "alias")
		require.NoError(t, err)
		assert.Equal(t, material, got)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := OpenSQLite(ctx, path, []byte("battery staple"))
		require.ErrorIs(t, err, ErrKeyStoreUnavailable)
	})
}

func TestSQLiteStore_MovedRowFailsToUnseal(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "keys.db"), "pw")

	_, err := s.Create(ctx, "a", bytes.Repeat([]byte{1}, KeySize))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE keys SET alias = 'b' WHERE alias = 'a'`)
	require.NoError(t, err)

	_, err = s.Load(ctx, "b")
	require.ErrorIs(t, err, ErrKeyStoreUnavailable)
}

func TestOpenSQLite_MigrationFailure(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("migrate boom")
	}
	defer func() { gooseUpContext = orig }()

	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "keys.db"), []byte("pw"))
	require.ErrorIs(t, err, ErrKeyStoreUnavailable)
	assert.Contains(t, err.Error(), "migrate boom")
}

func TestRunMigrations_QuietAndRepeatable(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	assert.Empty(t, buf.String(), "migrations must not write to the standard logger")
}

func TestOpenSQLite_RetriesMigration(t *testing.T) {
	orig := gooseUpContext
	var calls int
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		calls++
		if calls == 1 {
			return errors.New("table goose_db_version already exists")
		}
		return orig(ctx, db, dir, opts...)
	}
	defer func() { gooseUpContext = orig }()

	s := openTemp(t, filepath.Join(t.TempDir(), "keys.db"), "pw")
	assert.NotNil(t, s)
	assert.Equal(t, 2, calls)
}

func TestWithSQLiteParams(t *testing.T) {
	assert.Equal(t, "keys.db?_pragma=busy_timeout(5000)&_txlock=immediate", withSQLiteParams("keys.db"))
	assert.Equal(t, "file:keys.db?mode=rwc&_pragma=busy_timeout(5000)&_txlock=immediate",
		withSQLiteParams("file:keys.db?mode=rwc"))
}
