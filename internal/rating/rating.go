// Package rating normalizes rating-like source tags onto a 0–5 scale.
// Absence is a valid, common outcome: most OSM beaches carry no rating at
// all, so the processor never returns an error.
package rating

import (
	"math"
	"strconv"
	"strings"
)

// tagKeys lists rating vocabulary seen across OSM and imported datasets,
// checked in priority order.
var tagKeys = []string{"rating", "stars", "review_score", "score"}

// Normalize extracts a rating from the tag map and maps it onto [0,5],
// rounded to one decimal. The second return is false when no rating tag
// exists or its value is unparseable.
func Normalize(tags map[string]string) (float64, bool) {
	for _, key := range tagKeys {
		raw, ok := tags[key]
		if !ok {
			continue
		}
		if v, ok := parse(raw); ok {
			return v, true
		}
	}
	return 0, false
}

// parse handles the value forms that occur in the wild: "4.5", "4.5/5",
// "8/10", "90%".
func parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	var value, scale float64

	switch {
	case strings.HasSuffix(s, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		value, scale = pct, 100

	case strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, false
		}
		den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || den <= 0 {
			return 0, false
		}
		value, scale = num, den

	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		value = v
		// Bare values above 5 are assumed to be on a 10-point scale.
		scale = 5
		if v > 5 {
			scale = 10
		}
	}

	normalized := value / scale * 5
	return clamp(normalized), true
}

func clamp(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 5 {
		v = 5
	}
	return math.Round(v*10) / 10
}
