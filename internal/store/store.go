// Package store persists beach documents and collection-run history
// behind a driver-agnostic interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shoreline-data/beachsync/internal/config"
	"github.com/shoreline-data/beachsync/internal/model"
)

// UpsertResult reports what an upsert did. PrevSourceID is set when an
// existing document was replaced; a replacement carrying a different
// source ID means two distinct source points rounded to the same
// identity key.
type UpsertResult struct {
	Created      bool
	PrevSourceID string
}

// RunSummary is the counter set persisted when a run finishes.
type RunSummary struct {
	Status   model.RunStatus
	Upserted int
	Rejected int
	Error    string
}

// Store defines the persistence interface for the collection pipeline.
type Store interface {
	// Documents
	UpsertBeach(ctx context.Context, doc model.BeachDocument) (UpsertResult, error)
	CountBeaches(ctx context.Context) (int64, error)

	// Run history
	StartRun(ctx context.Context, regions int) (string, error)
	CompleteRun(ctx context.Context, runID string, summary RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the configured store driver. Reaching the database at
// startup is a hard requirement; callers treat a failure here as fatal.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
