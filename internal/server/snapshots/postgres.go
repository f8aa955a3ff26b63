package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/deviceguard/internal/dbx"
	"github.com/dmitrijs2005/deviceguard/internal/server/snapshots/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	insertSnapshotQuery = `INSERT INTO snapshots (id, payload, received_at) VALUES ($1, $2::jsonb, $3)`
	insertEnvelopeQuery = `INSERT INTO envelopes (snapshot_id, scheme, body) VALUES ($1, $2, $3)`
	getSnapshotQuery    = `SELECT s.id, s.payload, s.received_at, e.scheme, e.body
		FROM snapshots s JOIN envelopes e ON e.snapshot_id = s.id
		WHERE s.id = $1`
	countSnapshotsQuery = `SELECT COUNT(*) FROM snapshots`
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenPostgres connects to dsn with the pgx driver and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, nil
}

// PostgresRepository writes each snapshot and its envelope in one
// transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, s *Snapshot) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, insertSnapshotQuery, s.ID, string(s.Payload), s.ReceivedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertEnvelopeQuery, s.ID, s.Scheme, s.Envelope); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Snapshot, error) {
	var s Snapshot
	var payload []byte

	err := r.db.QueryRowContext(ctx, getSnapshotQuery, id).
		Scan(&s.ID, &payload, &s.ReceivedAt, &s.Scheme, &s.Envelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Payload = payload
	return &s, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, countSnapshotsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
