// Package pipeline drives the collection run: regions are fetched,
// cleaned, enriched, rated and upserted in fixed-size batches, strictly
// sequentially.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shoreline-data/beachsync/internal/cleaner"
	"github.com/shoreline-data/beachsync/internal/enrich"
	"github.com/shoreline-data/beachsync/internal/model"
	"github.com/shoreline-data/beachsync/internal/rating"
	"github.com/shoreline-data/beachsync/internal/region"
	"github.com/shoreline-data/beachsync/internal/resilience"
	"github.com/shoreline-data/beachsync/internal/store"
	"github.com/shoreline-data/beachsync/pkg/overpass"
)

// Collector fetches raw beach records for a region.
type Collector interface {
	FetchBeaches(ctx context.Context, r model.Region) ([]model.RawRecord, error)
}

// Pipeline orchestrates the collection run.
type Pipeline struct {
	collector Collector
	cleaner   *cleaner.Cleaner
	enricher  *enrich.Enricher
	store     store.Store

	batchSize      int
	regionDelay    time.Duration
	splitOversized bool
	retryCfg       resilience.RetryConfig
	weather        enrich.WeatherProvider
	sleep          func(time.Duration)
	now            func() time.Time
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many raw records move through
// clean→enrich→rate→write together.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRegionDelay sets the courtesy pause between regions.
func WithRegionDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		p.regionDelay = d
	}
}

// WithSplitOversized enables splitting a region into quadrants when the
// source times out on the full bounding box.
func WithSplitOversized(enabled bool) Option {
	return func(p *Pipeline) {
		p.splitOversized = enabled
	}
}

// WithRetryConfig overrides the fetch retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) {
		p.retryCfg = cfg
	}
}

// WithWeather attaches an optional climate lookup to the enrichment
// stage.
func WithWeather(w enrich.WeatherProvider) Option {
	return func(p *Pipeline) {
		p.weather = w
	}
}

// WithSleep injects the sleep function, for deterministic tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *Pipeline) {
		p.sleep = fn
	}
}

// WithClock injects the time source, for deterministic tests.
func WithClock(fn func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = fn
	}
}

// New creates a Pipeline. The geocoder may be nil, in which case every
// record is persisted partially enriched.
func New(collector Collector, geocoder enrich.ReverseGeocoder, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		collector:      collector,
		cleaner:        cleaner.New(),
		store:          st,
		batchSize:      50,
		regionDelay:    2 * time.Second,
		splitOversized: true,
		retryCfg:       resilience.DefaultRetryConfig(),
		sleep:          time.Sleep,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.enricher = enrich.New(geocoder, enrich.WithWeather(p.weather))
	return p
}

// Run processes every region in order and returns the accumulated
// counters. Only a failure to record the run itself is returned as an
// error; everything that goes wrong mid-run is counted, logged and
// skipped.
func (p *Pipeline) Run(ctx context.Context, regions []model.Region) (*Stats, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	stats := &Stats{}

	runID, err := p.store.StartRun(ctx, len(regions))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}

	start := p.now()
	log.Info("collection run started",
		zap.String("run_id", runID),
		zap.Int("regions", len(regions)),
	)

	for i, r := range regions {
		if ctx.Err() != nil {
			break
		}
		p.processRegion(ctx, r, stats)

		if i < len(regions)-1 && p.regionDelay > 0 {
			p.sleep(p.regionDelay)
		}
	}

	stats.Rejected = p.cleaner.RejectedTotal()

	status := model.RunStatusComplete
	var runErr string
	if ctx.Err() != nil {
		status = model.RunStatusFailed
		runErr = ctx.Err().Error()
	}

	if err := p.store.CompleteRun(ctx, runID, store.RunSummary{
		Status:   status,
		Upserted: stats.Upserted,
		Rejected: stats.Rejected,
		Error:    runErr,
	}); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}

	log.Info("collection run finished",
		append([]zap.Field{
			zap.String("run_id", runID),
			zap.Duration("elapsed", p.now().Sub(start)),
		}, stats.Fields()...)...,
	)

	return stats, nil
}

// processRegion fetches one region and pushes its records through the
// batch stages. Failures are absorbed into stats.
func (p *Pipeline) processRegion(ctx context.Context, r model.Region, stats *Stats) {
	log := zap.L().With(zap.String("region", r.Name))

	records, err := p.fetchRegion(ctx, r, stats)
	if err != nil {
		log.Warn("region skipped", zap.Error(err))
		stats.RegionsFailed++
		return
	}

	log.Info("region fetched", zap.Int("records", len(records)))
	stats.Fetched += len(records)

	for start := 0; start < len(records); start += p.batchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}
		p.processBatch(ctx, records[start:end], stats)
	}

	stats.RegionsProcessed++
}

// fetchRegion retrieves raw records with bounded-backoff retries. When the
// source times out on the full box, the region is split into quadrants
// once and each quadrant fetched separately.
func (p *Pipeline) fetchRegion(ctx context.Context, r model.Region, stats *Stats) ([]model.RawRecord, error) {
	cfg := p.retryCfg
	cfg.OnRetry = resilience.RetryLogger("overpass", "fetch "+r.Name)

	records, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawRecord, error) {
		return p.collector.FetchBeaches(ctx, r)
	})
	if err == nil {
		return records, nil
	}

	if p.splitOversized && errors.Is(err, overpass.ErrQueryTimeout) {
		zap.L().Warn("query timed out, splitting region into quadrants",
			zap.String("region", r.Name))
		stats.RegionsSplit++

		var all []model.RawRecord
		for _, quad := range region.Split(r) {
			sub, subErr := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawRecord, error) {
				return p.collector.FetchBeaches(ctx, quad)
			})
			if subErr != nil {
				zap.L().Warn("quadrant skipped",
					zap.String("region", quad.Name),
					zap.Error(subErr),
				)
				continue
			}
			all = append(all, sub...)
		}
		return all, nil
	}

	return nil, err
}

// processBatch moves one batch through clean→enrich→rate→write. A store
// failure abandons the rest of the batch; the run continues with the
// next one.
func (p *Pipeline) processBatch(ctx context.Context, batch []model.RawRecord, stats *Stats) {
	for _, raw := range batch {
		clean, err := p.cleaner.Clean(raw)
		if err != nil {
			// Rejections are counted by the cleaner.
			continue
		}
		stats.Cleaned++

		enriched := p.enricher.Enrich(ctx, clean)
		switch enriched.Level {
		case model.EnrichmentFull:
			stats.EnrichedFull++
		case model.EnrichmentPartial:
			stats.EnrichedPartial++
		}

		doc := p.buildDocument(enriched, stats)

		res, err := p.store.UpsertBeach(ctx, doc)
		if err != nil {
			zap.L().Error("batch abandoned on store failure",
				zap.String("identity_key", doc.IdentityKey),
				zap.Error(err),
			)
			stats.BatchesFailed++
			return
		}

		stats.Upserted++
		if res.Created {
			stats.Created++
		} else {
			stats.Replaced++
			if res.PrevSourceID != "" && res.PrevSourceID != doc.SourceID {
				stats.KeyCollisions++
				zap.L().Warn("identity key collision: distinct source points share a key",
					zap.String("identity_key", doc.IdentityKey),
					zap.String("previous_source_id", res.PrevSourceID),
					zap.String("source_id", doc.SourceID),
				)
			}
		}
	}
}

func (p *Pipeline) buildDocument(rec model.EnrichedRecord, stats *Stats) model.BeachDocument {
	doc := model.BeachDocument{
		IdentityKey: rec.IdentityKey,
		SourceID:    rec.SourceID,
		Name:        rec.Name,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		PlaceName:   rec.Place.PlaceName,
		AdminRegion: rec.Place.AdminRegion,
		Country:     rec.Place.Country,
		Amenities:   rec.Amenities,
		Description: rec.Description,
		Climate:     rec.Climate,
		Tags:        rec.Tags,
		Enrichment:  rec.Level,
		CollectedAt: p.now().UTC(),
	}

	if v, ok := rating.Normalize(rec.Tags); ok {
		doc.Rating = v
		doc.HasRating = true
		stats.Rated++
	}

	return doc
}

// RejectionsByReason exposes the cleaner's per-reason counters for the
// end-of-run report.
func (p *Pipeline) RejectionsByReason() map[cleaner.Reason]int {
	return p.cleaner.Rejected()
}
