package pipeline

import "go.uber.org/zap"

// Stats holds the counters accumulated over a collection run. Per-record
// and per-batch failures are reported here rather than as errors so a
// long multi-region run keeps making forward progress.
type Stats struct {
	RegionsProcessed int
	RegionsFailed    int
	RegionsSplit     int
	Fetched          int
	Cleaned          int
	Rejected         int
	EnrichedFull     int
	EnrichedPartial  int
	Rated            int
	Upserted         int
	Created          int
	Replaced         int
	KeyCollisions    int
	BatchesFailed    int
}

// Fields renders the counters as zap fields for the run summary log line.
func (s *Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("regions_processed", s.RegionsProcessed),
		zap.Int("regions_failed", s.RegionsFailed),
		zap.Int("regions_split", s.RegionsSplit),
		zap.Int("fetched", s.Fetched),
		zap.Int("cleaned", s.Cleaned),
		zap.Int("rejected", s.Rejected),
		zap.Int("enriched_full", s.EnrichedFull),
		zap.Int("enriched_partial", s.EnrichedPartial),
		zap.Int("rated", s.Rated),
		zap.Int("upserted", s.Upserted),
		zap.Int("created", s.Created),
		zap.Int("replaced", s.Replaced),
		zap.Int("key_collisions", s.KeyCollisions),
		zap.Int("batches_failed", s.BatchesFailed),
	}
}
