package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoreline-data/beachsync/internal/model"
)

type stubGeocoder struct {
	place *model.PlaceInfo
	err   error
	calls int
}

func (s *stubGeocoder) Reverse(ctx context.Context, lat, lon float64) (*model.PlaceInfo, error) {
	s.calls++
	return s.place, s.err
}

func TestIdentityKey_PureAndStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, IdentityKey(10, 10), IdentityKey(10, 10))
	assert.Equal(t, "10.00000:10.00000", IdentityKey(10, 10))
}

func TestIdentityKey_PrecisionEquivalence(t *testing.T) {
	t.Parallel()

	// Differences beyond the fifth decimal collapse to the same key.
	assert.Equal(t, IdentityKey(10.000001, 10.000004), IdentityKey(10.0000049, 10.0))

	// Differences at the fifth decimal do not.
	assert.NotEqual(t, IdentityKey(10.00001, 10), IdentityKey(10.00002, 10))
}

func TestIdentityKey_SignedCoordinates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-33.98765:151.27000", IdentityKey(-33.987654, 151.27))
}

func TestIdentityKey_NoNegativeZero(t *testing.T) {
	t.Parallel()

	// Coordinates straddling zero within key precision must collapse to
	// the same key; negative zero would render as "-0.00000".
	assert.Equal(t, IdentityKey(0.000001, 10), IdentityKey(-0.000001, 10))
	assert.Equal(t, "0.00000:10.00000", IdentityKey(-0.000001, 10))
	assert.Equal(t, "10.00000:0.00000", IdentityKey(10, -0.000004))
}

func TestEnrich_Full(t *testing.T) {
	t.Parallel()

	geo := &stubGeocoder{place: &model.PlaceInfo{
		PlaceName:   "Esperance",
		AdminRegion: "Western Australia",
		Country:     "Australia",
	}}
	e := New(geo)

	rec := model.CleanRecord{SourceID: "osm_node_1", Name: "Lucky Bay", Latitude: -33.99, Longitude: 122.23}
	got := e.Enrich(context.Background(), rec)

	assert.Equal(t, model.EnrichmentFull, got.Level)
	assert.Equal(t, "Esperance", got.Place.PlaceName)
	assert.Equal(t, IdentityKey(-33.99, 122.23), got.IdentityKey)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrich_GeocodeFailureIsPartialNotFatal(t *testing.T) {
	t.Parallel()

	geo := &stubGeocoder{err: errors.New("upstream unavailable")}
	e := New(geo)

	rec := model.CleanRecord{SourceID: "osm_node_2", Name: "Remote Cove", Latitude: -20, Longitude: 115}
	got := e.Enrich(context.Background(), rec)

	assert.Equal(t, model.EnrichmentPartial, got.Level)
	assert.Empty(t, got.Place.PlaceName)
	assert.Empty(t, got.Place.AdminRegion)
	assert.NotEmpty(t, got.IdentityKey)
}

func TestEnrich_NilGeocoder(t *testing.T) {
	t.Parallel()

	e := New(nil)
	got := e.Enrich(context.Background(), model.CleanRecord{Latitude: 1, Longitude: 2})
	assert.Equal(t, model.EnrichmentPartial, got.Level)
	assert.Equal(t, IdentityKey(1, 2), got.IdentityKey)
}

type stubWeather struct {
	climate *model.ClimateInfo
	err     error
}

func (s *stubWeather) Current(ctx context.Context, lat, lon float64) (*model.ClimateInfo, error) {
	return s.climate, s.err
}

func TestEnrich_AttachesClimate(t *testing.T) {
	t.Parallel()

	weather := &stubWeather{climate: &model.ClimateInfo{
		TemperatureC: 24.3,
		Conditions:   "clear sky",
		WindSpeedMS:  3.6,
	}}
	e := New(nil, WithWeather(weather))

	got := e.Enrich(context.Background(), model.CleanRecord{Latitude: -25.9, Longitude: 113.5})
	require.NotNil(t, got.Climate)
	assert.Equal(t, "clear sky", got.Climate.Conditions)
}

func TestEnrich_ClimateFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e := New(nil, WithWeather(&stubWeather{err: errors.New("quota exceeded")}))
	got := e.Enrich(context.Background(), model.CleanRecord{Latitude: 1, Longitude: 2})
	assert.Nil(t, got.Climate)
	assert.NotEmpty(t, got.IdentityKey)
}

func TestAmenities(t *testing.T) {
	t.Parallel()

	tags := map[string]string{
		"name":            "Shell Beach",
		"toilets":         "yes",
		"amenity:shower":  "yes",
		"drinking_water":  "yes",
		"surface":         "sand",
		"amenity:parking": "no", // presence is what counts
	}

	got := Amenities(tags)
	assert.Equal(t, []string{"Shower", "Toilets", "Parking", "Drinking Water"}, got)
}

func TestAmenities_NoneTagged(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Amenities(map[string]string{"name": "Bare Cove"}))
	assert.Empty(t, Amenities(nil))
}

func TestDescription(t *testing.T) {
	t.Parallel()

	tags := map[string]string{
		"description": "A sheltered bay.",
		"surface":     "sand",
		"access":      "public",
	}
	got := Description(tags, "Shell Beach", []string{"Toilets", "Parking"})
	assert.Equal(t,
		"A sheltered bay. Shell Beach has a sand surface. Access is public. Available amenities include: Toilets, Parking.",
		got,
	)
}

func TestDescription_EmptyWhenNothingUsable(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Description(map[string]string{"name": "Quiet Cove"}, "Quiet Cove", nil))
}

func TestEnrich_DerivesTagExtras(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rec := model.CleanRecord{
		SourceID:  "osm_way_3",
		Name:      "Shell Beach",
		Latitude:  -25.9,
		Longitude: 113.5,
		Tags: map[string]string{
			"name":    "Shell Beach",
			"surface": "shells",
			"toilets": "yes",
		},
	}

	got := e.Enrich(context.Background(), rec)
	assert.Equal(t, []string{"Toilets"}, got.Amenities)
	assert.Contains(t, got.Description, "Shell Beach has a shells surface.")
	assert.Contains(t, got.Description, "Available amenities include: Toilets.")
}
