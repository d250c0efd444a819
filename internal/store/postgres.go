package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shoreline-data/beachsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool with a JSONB document
// column keyed by identity key.
type PostgresStore struct {
	pool Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS beaches (
	identity_key TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	name         TEXT NOT NULL,
	document     JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_beaches_source_id ON beaches(source_id);
CREATE INDEX IF NOT EXISTS idx_beaches_name ON beaches(name);

CREATE TABLE IF NOT EXISTS collection_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	regions     INTEGER NOT NULL DEFAULT 0,
	upserted    INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_collection_runs_started_at ON collection_runs(started_at DESC);
`

const (
	selectBeachSourceSQL = `SELECT source_id FROM beaches WHERE identity_key = $1`

	upsertBeachSQL = `
		INSERT INTO beaches (identity_key, source_id, name, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (identity_key) DO UPDATE SET
			source_id  = EXCLUDED.source_id,
			name       = EXCLUDED.name,
			document   = EXCLUDED.document,
			updated_at = now()`
)

// NewPostgres creates a PostgresStore with a connection pool and verifies
// connectivity.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertBeach writes a document keyed by identity key, last write wins.
func (s *PostgresStore) UpsertBeach(ctx context.Context, doc model.BeachDocument) (UpsertResult, error) {
	var result UpsertResult

	var prev string
	err := s.pool.QueryRow(ctx, selectBeachSourceSQL, doc.IdentityKey).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		result.Created = true
	case err != nil:
		return result, eris.Wrap(err, "postgres: lookup existing beach")
	default:
		result.PrevSourceID = prev
	}

	docJSON, err := json.Marshal(doc.Flatten())
	if err != nil {
		return result, eris.Wrap(err, "postgres: marshal document")
	}

	if _, err := s.pool.Exec(ctx, upsertBeachSQL,
		doc.IdentityKey, doc.SourceID, doc.Name, docJSON,
	); err != nil {
		return result, eris.Wrap(err, "postgres: upsert beach")
	}

	return result, nil
}

func (s *PostgresStore) CountBeaches(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM beaches`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count beaches")
	}
	return n, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, regions int) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collection_runs (id, status, regions, started_at) VALUES ($1, $2, $3, now())`,
		id, model.RunStatusRunning, regions,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE collection_runs SET status = $1, upserted = $2, rejected = $3, error = $4, finished_at = now() WHERE id = $5`,
		summary.Status, summary.Upserted, summary.Rejected, nilIfEmpty(summary.Error), runID,
	)
	return eris.Wrap(err, "postgres: complete run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, regions, upserted, rejected, COALESCE(error, ''), started_at, finished_at
		 FROM collection_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.CollectionRun
	for rows.Next() {
		var r model.CollectionRun
		var status string
		if err := rows.Scan(&r.ID, &status, &r.Regions, &r.Upserted, &r.Rejected, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
