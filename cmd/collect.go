package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shoreline-data/beachsync/internal/cleaner"
	"github.com/shoreline-data/beachsync/internal/model"
	"github.com/shoreline-data/beachsync/internal/pipeline"
	"github.com/shoreline-data/beachsync/internal/region"
	"github.com/shoreline-data/beachsync/internal/store"
	"github.com/shoreline-data/beachsync/pkg/nominatim"
	"github.com/shoreline-data/beachsync/pkg/openweather"
	"github.com/shoreline-data/beachsync/pkg/overpass"
)

var (
	collectRegionsFile string
	collectDryRun      bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the beach collection pipeline",
	Long:  "Fetches beach points of interest for each configured region, cleans, enriches and rates them, and upserts the results into the document store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		regions, err := loadRegions()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		if err := st.Ping(ctx); err != nil {
			return eris.Wrap(err, "store unreachable")
		}

		// One limiter shared by every upstream fetch enforces the global
		// requests-per-minute budget.
		limiter := rate.NewLimiter(rate.Limit(float64(cfg.Pipeline.RateLimitPerMinute)/60.0), 1)

		collector := overpass.NewClient(
			overpass.WithBaseURL(cfg.Overpass.BaseURL),
			overpass.WithQueryBudget(cfg.Overpass.TimeoutSecs),
			overpass.WithLimiter(limiter),
		)
		geocoder := nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
			nominatim.WithMinInterval(cfg.Nominatim.NominatimDelay()),
			nominatim.WithLimiter(limiter),
		)

		pipelineOpts := []pipeline.Option{
			pipeline.WithBatchSize(cfg.Pipeline.BatchSize),
			pipeline.WithRegionDelay(cfg.Pipeline.RegionDelay()),
			pipeline.WithSplitOversized(cfg.Pipeline.SplitOversizedRegions),
		}
		if cfg.Weather.Enabled() {
			weather := openweather.NewClient(cfg.Weather.APIKey,
				openweather.WithBaseURL(cfg.Weather.BaseURL),
				openweather.WithMinInterval(cfg.Weather.WeatherDelay()),
				openweather.WithLimiter(limiter),
			)
			pipelineOpts = append(pipelineOpts, pipeline.WithWeather(weather))
		}

		p := pipeline.New(collector, geocoder, st, pipelineOpts...)

		stats, err := p.Run(ctx, regions)
		if err != nil {
			return eris.Wrap(err, "collection run")
		}

		formatRunReport(os.Stdout, stats, p.RejectionsByReason(), collectDryRun)
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectRegionsFile, "regions", "", "YAML file with region bounding boxes (defaults to built-in regions)")
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "process everything but write nothing to the store")
	rootCmd.AddCommand(collectCmd)
}

func loadRegions() ([]model.Region, error) {
	path := collectRegionsFile
	if path == "" {
		path = cfg.Pipeline.RegionsFile
	}
	return region.Load(path)
}

func openStore(ctx context.Context) (store.Store, error) {
	if collectDryRun {
		zap.L().Info("dry run: no documents will be written")
		return newMemoryStore(), nil
	}
	return initStore(ctx)
}

func formatRunReport(out io.Writer, stats *pipeline.Stats, rejections map[cleaner.Reason]int, dryRun bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if dryRun {
		_, _ = fmt.Fprintln(w, "Dry run: nothing persisted.")
	}
	_, _ = fmt.Fprintf(w, "Regions processed:\t%d\n", stats.RegionsProcessed)
	_, _ = fmt.Fprintf(w, "Regions failed:\t%d\n", stats.RegionsFailed)
	_, _ = fmt.Fprintf(w, "Regions split:\t%d\n", stats.RegionsSplit)
	_, _ = fmt.Fprintf(w, "Fetched:\t%d\n", stats.Fetched)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", stats.Rejected)
	_, _ = fmt.Fprintf(w, "Upserted:\t%d\n", stats.Upserted)
	_, _ = fmt.Fprintf(w, "  Created:\t%d\n", stats.Created)
	_, _ = fmt.Fprintf(w, "  Replaced:\t%d\n", stats.Replaced)
	_, _ = fmt.Fprintf(w, "Fully enriched:\t%d\n", stats.EnrichedFull)
	_, _ = fmt.Fprintf(w, "Rated:\t%d\n", stats.Rated)
	if stats.KeyCollisions > 0 {
		_, _ = fmt.Fprintf(w, "Key collisions:\t%d\n", stats.KeyCollisions)
	}
	if stats.BatchesFailed > 0 {
		_, _ = fmt.Fprintf(w, "Batches failed:\t%d\n", stats.BatchesFailed)
	}

	if len(rejections) > 0 {
		_, _ = fmt.Fprintln(w, "Rejections by reason:")
		reasons := make([]string, 0, len(rejections))
		for r := range rejections {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", r, rejections[cleaner.Reason(r)])
		}
	}
	_ = w.Flush()
}

// memoryStore backs dry runs: full pipeline semantics, nothing persisted.
type memoryStore struct {
	docs map[string]model.BeachDocument
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]model.BeachDocument)}
}

func (m *memoryStore) UpsertBeach(_ context.Context, doc model.BeachDocument) (store.UpsertResult, error) {
	res := store.UpsertResult{Created: true}
	if prev, ok := m.docs[doc.IdentityKey]; ok {
		res.Created = false
		res.PrevSourceID = prev.SourceID
	}
	m.docs[doc.IdentityKey] = doc
	return res, nil
}

func (m *memoryStore) CountBeaches(context.Context) (int64, error) {
	return int64(len(m.docs)), nil
}

func (m *memoryStore) StartRun(context.Context, int) (string, error) {
	return uuid.NewString(), nil
}

func (m *memoryStore) CompleteRun(context.Context, string, store.RunSummary) error { return nil }

func (m *memoryStore) ListRuns(context.Context, int) ([]model.CollectionRun, error) {
	return nil, nil
}

func (m *memoryStore) Migrate(context.Context) error { return nil }
func (m *memoryStore) Ping(context.Context) error    { return nil }
func (m *memoryStore) Close() error                  { return nil }
