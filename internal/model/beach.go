package model

import (
	"time"
)

// Region is a named bounding box to scan for beaches. Regions are loaded
// once at startup and never mutated.
type Region struct {
	Name  string  `json:"name" yaml:"name"`
	South float64 `json:"south" yaml:"south"`
	North float64 `json:"north" yaml:"north"`
	West  float64 `json:"west" yaml:"west"`
	East  float64 `json:"east" yaml:"east"`
}

// RawRecord is a single point of interest as returned by the geodata
// source, before any validation. Tags is the source's free-form key/value
// map; coordinates are the element's resolved center.
type RawRecord struct {
	SourceID  string            `json:"source_id"`
	Tags      map[string]string `json:"tags"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
}

// CleanRecord is a RawRecord that passed validation: name is non-empty and
// trimmed, coordinates are within valid lat/lon ranges.
type CleanRecord struct {
	SourceID  string            `json:"source_id"`
	Name      string            `json:"name"`
	Tags      map[string]string `json:"tags"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
}

// PlaceInfo holds reverse-geocoding output for a coordinate pair.
type PlaceInfo struct {
	PlaceName   string `json:"place_name"`
	AdminRegion string `json:"admin_region"`
	Country     string `json:"country"`
}

// ClimateInfo holds current-weather output for a coordinate pair.
type ClimateInfo struct {
	TemperatureC float64 `json:"temperature_c"`
	Conditions   string  `json:"conditions"`
	WindSpeedMS  float64 `json:"wind_speed_ms"`
}

// EnrichmentLevel records how much of the enrichment step succeeded.
// Reverse geocoding is best-effort: a record that could not be geocoded
// still proceeds through the pipeline, just without place metadata.
type EnrichmentLevel string

const (
	// EnrichmentFull means reverse geocoding succeeded.
	EnrichmentFull EnrichmentLevel = "full"
	// EnrichmentPartial means reverse geocoding failed and place fields
	// are absent.
	EnrichmentPartial EnrichmentLevel = "partial"
)

// EnrichedRecord is a CleanRecord with place metadata, a stable identity
// key derived from rounded coordinates, and the local tag-derived extras
// (amenities, description) plus optional climate data.
type EnrichedRecord struct {
	CleanRecord
	IdentityKey string          `json:"identity_key"`
	Place       PlaceInfo       `json:"place"`
	Amenities   []string        `json:"amenities,omitempty"`
	Description string          `json:"description,omitempty"`
	Climate     *ClimateInfo    `json:"climate,omitempty"`
	Level       EnrichmentLevel `json:"enrichment_level"`
}

// BeachDocument is the persisted unit, keyed by IdentityKey. Rating is on
// a 0–5 scale; HasRating distinguishes a genuine 0 from absence.
type BeachDocument struct {
	IdentityKey string            `json:"identity_key"`
	SourceID    string            `json:"source_id"`
	Name        string            `json:"name"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	PlaceName   string            `json:"place_name,omitempty"`
	AdminRegion string            `json:"admin_region,omitempty"`
	Country     string            `json:"country,omitempty"`
	Amenities   []string          `json:"amenities,omitempty"`
	Description string            `json:"description,omitempty"`
	Climate     *ClimateInfo      `json:"climate,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	HasRating   bool              `json:"has_rating"`
	Tags        map[string]string `json:"tags,omitempty"`
	Enrichment  EnrichmentLevel   `json:"enrichment_level"`
	CollectedAt time.Time         `json:"collected_at"`
}

// Flatten serializes the document as a flat key/value map, the shape the
// document store persists.
func (d BeachDocument) Flatten() map[string]any {
	m := map[string]any{
		"identity_key":     d.IdentityKey,
		"source_id":        d.SourceID,
		"name":             d.Name,
		"latitude":         d.Latitude,
		"longitude":        d.Longitude,
		"enrichment_level": string(d.Enrichment),
		"collected_at":     d.CollectedAt.UTC().Format(time.RFC3339),
	}
	if d.PlaceName != "" {
		m["place_name"] = d.PlaceName
	}
	if d.AdminRegion != "" {
		m["admin_region"] = d.AdminRegion
	}
	if d.Country != "" {
		m["country"] = d.Country
	}
	if len(d.Amenities) > 0 {
		m["amenities"] = d.Amenities
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Climate != nil {
		m["climate_temperature_c"] = d.Climate.TemperatureC
		m["climate_conditions"] = d.Climate.Conditions
		m["climate_wind_speed_ms"] = d.Climate.WindSpeedMS
	}
	if d.HasRating {
		m["rating"] = d.Rating
	}
	return m
}

// RunStatus represents the state of a collection run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// CollectionRun is one execution of the pipeline, recorded for the
// status command.
type CollectionRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Regions    int        `json:"regions"`
	Upserted   int        `json:"upserted"`
	Rejected   int        `json:"rejected"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
