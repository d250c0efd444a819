// Package cleaner validates and normalizes raw collector records.
// Rejection is an expected, common outcome — many OSM points are
// incomplete — so rejected records are counted, never escalated.
package cleaner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shoreline-data/beachsync/internal/model"
)

// Reason classifies why a record was rejected.
type Reason string

const (
	ReasonMissingName     Reason = "missing_name"
	ReasonPlaceholderName Reason = "placeholder_name"
	ReasonNameTooShort    Reason = "name_too_short"
	ReasonNumericName     Reason = "numeric_name"
	ReasonBadCoordinates  Reason = "bad_coordinates"
)

// RejectionError reports a record that failed cleaning rules.
type RejectionError struct {
	SourceID string
	Reason   Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("cleaner: rejected %s (%s)", e.SourceID, e.Reason)
}

var beachWord = regexp.MustCompile(`(?i)\bbeach\b`)

// Cleaner normalizes raw records and counts rejections by reason. Not
// safe for concurrent use; the pipeline is strictly sequential.
type Cleaner struct {
	rejected map[Reason]int
}

// New creates a Cleaner.
func New() *Cleaner {
	return &Cleaner{rejected: make(map[Reason]int)}
}

// Clean validates a raw record and returns its normalized form, or a
// *RejectionError describing why it was dropped.
func (c *Cleaner) Clean(raw model.RawRecord) (model.CleanRecord, error) {
	name, ok := raw.Tags["name"]
	if !ok || strings.TrimSpace(name) == "" {
		return model.CleanRecord{}, c.reject(raw, ReasonMissingName)
	}

	name = normalizeName(name)

	// Auto-generated placeholders carry no real identity.
	if strings.HasPrefix(name, "Beach ") || strings.EqualFold(name, "unnamed beach") {
		return model.CleanRecord{}, c.reject(raw, ReasonPlaceholderName)
	}
	if len(name) < 3 {
		return model.CleanRecord{}, c.reject(raw, ReasonNameTooShort)
	}
	if isNumeric(name) {
		return model.CleanRecord{}, c.reject(raw, ReasonNumericName)
	}

	lat, lon, err := c.resolveCoordinates(raw)
	if err != nil {
		return model.CleanRecord{}, c.reject(raw, ReasonBadCoordinates)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.CleanRecord{}, c.reject(raw, ReasonBadCoordinates)
	}

	return model.CleanRecord{
		SourceID:  raw.SourceID,
		Name:      name,
		Tags:      trimTags(raw.Tags),
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

// Rejected returns rejection counts by reason.
func (c *Cleaner) Rejected() map[Reason]int {
	out := make(map[Reason]int, len(c.rejected))
	for k, v := range c.rejected {
		out[k] = v
	}
	return out
}

// RejectedTotal returns the total number of rejected records.
func (c *Cleaner) RejectedTotal() int {
	var n int
	for _, v := range c.rejected {
		n += v
	}
	return n
}

func (c *Cleaner) reject(raw model.RawRecord, reason Reason) error {
	c.rejected[reason]++
	zap.L().Debug("record rejected",
		zap.String("source_id", raw.SourceID),
		zap.String("reason", string(reason)),
	)
	return &RejectionError{SourceID: raw.SourceID, Reason: reason}
}

// resolveCoordinates returns the record's coordinates, coercing
// tag-provided string coordinates when the element itself carried none.
func (c *Cleaner) resolveCoordinates(raw model.RawRecord) (float64, float64, error) {
	if raw.Latitude != 0 || raw.Longitude != 0 {
		return raw.Latitude, raw.Longitude, nil
	}

	latStr, latOK := raw.Tags["lat"]
	lonStr, lonOK := raw.Tags["lon"]
	if !latOK || !lonOK {
		// (0,0) with no tag coordinates is the null island artifact of a
		// missing location, not a real beach.
		return 0, 0, fmt.Errorf("cleaner: no coordinates for %s", raw.SourceID)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("cleaner: parse lat %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("cleaner: parse lon %q: %w", lonStr, err)
	}
	return lat, lon, nil
}

// normalizeName trims and collapses whitespace and canonicalizes the word
// "beach" to title case.
func normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return beachWord.ReplaceAllString(name, "Beach")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func trimTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
