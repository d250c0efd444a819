package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shoreline-data/beachsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS beaches (
	identity_key TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	name         TEXT NOT NULL,
	document     TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) UpsertBeach(ctx context.Context, doc model.BeachDocument) (UpsertResult, error) {
	var result UpsertResult

	var prev string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id FROM beaches WHERE identity_key = ?`, doc.IdentityKey,
	).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result.Created = true
	case err != nil:
		return result, eris.Wrap(err, "sqlite: lookup existing beach")
	default:
		result.PrevSourceID = prev
	}

	docJSON, err := json.Marshal(doc.Flatten())
	if err != nil {
		return result, eris.Wrap(err, "sqlite: marshal document")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO beaches (identity_key, source_id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))
		ON CONFLICT (identity_key) DO UPDATE SET
			source_id  = excluded.source_id,
			name       = excluded.name,
			document   = excluded.document,
			updated_at = datetime('now')`,
		doc.IdentityKey, doc.SourceID, doc.Name, string(docJSON),
	)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: upsert beach")
	}
	return result, nil
}

func (s *SQLiteStore) CountBeaches(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM beaches`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count beaches")
	}
	return n, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, regions int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_runs (id, status, regions) VALUES (?, ?, ?)`,
		id, string(model.RunStatusRunning), regions,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	var errVal any
	if summary.Error != "" {
		errVal = summary.Error
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE collection_runs SET status = ?, upserted = ?, rejected = ?, error = ?, finished_at = datetime('now') WHERE id = ?`,
		string(summary.Status), summary.Upserted, summary.Rejected, errVal, runID,
	)
	return eris.Wrap(err, "sqlite: complete run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, regions, upserted, rejected, COALESCE(error, ''), started_at, finished_at
		 FROM collection_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.CollectionRun
	for rows.Next() {
		var r model.CollectionRun
		var status string
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &status, &r.Regions, &r.Upserted, &r.Rejected, &r.Error, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		if ts, err := time.Parse("2006-01-02 15:04:05", started); err == nil {
			r.StartedAt = ts
		}
		if finished.Valid {
			if ts, err := time.Parse("2006-01-02 15:04:05", finished.String); err == nil {
				r.FinishedAt = &ts
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}
