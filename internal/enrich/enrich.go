// Package enrich attaches place metadata to cleaned records and derives
// the stable identity key used for upsert deduplication.
package enrich

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/shoreline-data/beachsync/internal/model"
)

// KeyPrecision is the number of decimal places coordinates are rounded to
// when deriving identity keys: 5 decimals is roughly 1 meter. Changing it
// invalidates every stored key, so it is fixed.
const KeyPrecision = 5

// ReverseGeocoder resolves a coordinate pair to place metadata.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*model.PlaceInfo, error)
}

// WeatherProvider resolves a coordinate pair to current climate data.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (*model.ClimateInfo, error)
}

// IdentityKey derives the document key from coordinates rounded to
// KeyPrecision. It is a pure function: the same physical location yields
// the same key on every run.
func IdentityKey(lat, lon float64) string {
	return fmt.Sprintf("%.*f:%.*f", KeyPrecision, roundTo(lat, KeyPrecision), KeyPrecision, roundTo(lon, KeyPrecision))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	r := math.Round(v*scale) / scale
	// math.Round keeps the sign of negative zero, which "%.*f" would
	// render as "-0.00000" and split one location into two keys.
	if r == 0 {
		return 0
	}
	return r
}

// Enricher runs the best-effort enrichment stage.
type Enricher struct {
	geocoder ReverseGeocoder
	weather  WeatherProvider
}

// Option configures the enricher.
type Option func(*Enricher)

// WithWeather attaches an optional climate lookup. Failures never block a
// record; climate fields are simply absent.
func WithWeather(w WeatherProvider) Option {
	return func(e *Enricher) {
		e.weather = w
	}
}

// New creates an Enricher. A nil geocoder disables place lookups; every
// record then comes back partially enriched.
func New(geocoder ReverseGeocoder, opts ...Option) *Enricher {
	e := &Enricher{geocoder: geocoder}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich computes the record's identity key and attaches reverse-geocoded
// place metadata. Geocoding failures downgrade the result to
// EnrichmentPartial instead of failing: place info is desirable, not
// required.
func (e *Enricher) Enrich(ctx context.Context, rec model.CleanRecord) model.EnrichedRecord {
	enriched := model.EnrichedRecord{
		CleanRecord: rec,
		IdentityKey: IdentityKey(rec.Latitude, rec.Longitude),
		Amenities:   Amenities(rec.Tags),
		Level:       model.EnrichmentPartial,
	}
	enriched.Description = Description(rec.Tags, rec.Name, enriched.Amenities)

	if e.weather != nil {
		climate, err := e.weather.Current(ctx, rec.Latitude, rec.Longitude)
		if err != nil {
			zap.L().Debug("climate lookup failed, proceeding without climate info",
				zap.String("source_id", rec.SourceID),
				zap.Error(err),
			)
		} else {
			enriched.Climate = climate
		}
	}

	if e.geocoder == nil {
		return enriched
	}

	place, err := e.geocoder.Reverse(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		zap.L().Debug("reverse geocode failed, proceeding without place info",
			zap.String("source_id", rec.SourceID),
			zap.Error(err),
		)
		return enriched
	}

	enriched.Place = *place
	enriched.Level = model.EnrichmentFull
	return enriched
}

// amenityTags is the tag vocabulary checked for beach facilities, as
// either a bare key or an "amenity:" prefixed one.
var amenityTags = []string{
	"shower", "toilets", "parking", "drinking_water",
	"restaurant", "cafe", "lifeguard", "changing_room",
}

// Amenities extracts the facilities a beach's tags advertise, rendered
// for display ("drinking_water" becomes "Drinking Water").
func Amenities(tags map[string]string) []string {
	var out []string
	for _, tag := range amenityTags {
		if _, ok := tags[tag]; !ok {
			if _, ok := tags["amenity:"+tag]; !ok {
				continue
			}
		}
		out = append(out, displayName(tag))
	}
	return out
}

func displayName(tag string) string {
	words := strings.Split(tag, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Description assembles a short description from the source tags: the
// free-form description tag, surface and access notes, and the amenity
// list. Returns "" when the tags carry nothing usable.
func Description(tags map[string]string, name string, amenities []string) string {
	var parts []string

	if d := strings.TrimSpace(tags["description"]); d != "" {
		parts = append(parts, d)
	}
	if s := strings.TrimSpace(tags["surface"]); s != "" {
		parts = append(parts, fmt.Sprintf("%s has a %s surface.", name, s))
	}
	if a := strings.TrimSpace(tags["access"]); a != "" {
		parts = append(parts, fmt.Sprintf("Access is %s.", a))
	}
	if len(amenities) > 0 {
		parts = append(parts, fmt.Sprintf("Available amenities include: %s.", strings.Join(amenities, ", ")))
	}

	return strings.Join(parts, " ")
}
