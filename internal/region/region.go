// Package region loads and validates the ordered list of bounding boxes
// the pipeline scans.
package region

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/shoreline-data/beachsync/internal/model"
)

// Defaults returns the built-in region list used when no regions file is
// configured.
func Defaults() []model.Region {
	return []model.Region{
		{Name: "Western Australia", South: -35.0, North: -13.0, West: 112.0, East: 129.0},
		{Name: "Eastern Australia", South: -39.0, North: -10.0, West: 140.0, East: 154.0},
		{Name: "Mediterranean Coast", South: 30.0, North: 45.0, West: -6.0, East: 36.0},
	}
}

type regionsFile struct {
	Regions []model.Region `yaml:"regions"`
}

// Load reads an ordered region list from a YAML file. An empty path
// returns the built-in defaults. Traversal order is file order.
func Load(path string) ([]model.Region, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}

	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "region: parse %s", path)
	}
	if len(f.Regions) == 0 {
		return nil, eris.Errorf("region: %s contains no regions", path)
	}

	for i, r := range f.Regions {
		if err := Validate(r); err != nil {
			return nil, eris.Wrapf(err, "region: entry %d", i)
		}
	}

	return f.Regions, nil
}

// Validate checks a region's bounding box invariants.
func Validate(r model.Region) error {
	if r.Name == "" {
		return eris.New("region: name is required")
	}
	if r.South < -90 || r.North > 90 || r.South >= r.North {
		return eris.Errorf("region %s: invalid latitude bounds [%g, %g]", r.Name, r.South, r.North)
	}
	if r.West < -180 || r.East > 180 || r.West >= r.East {
		return eris.Errorf("region %s: invalid longitude bounds [%g, %g]", r.Name, r.West, r.East)
	}
	return nil
}

// Split divides a region into four quadrants. The collector falls back to
// quadrant queries when the upstream source times out on a large box.
func Split(r model.Region) [4]model.Region {
	midLat := (r.South + r.North) / 2
	midLon := (r.West + r.East) / 2

	quadrant := func(suffix string, south, north, west, east float64) model.Region {
		return model.Region{
			Name:  fmt.Sprintf("%s-%s", r.Name, suffix),
			South: south,
			North: north,
			West:  west,
			East:  east,
		}
	}

	return [4]model.Region{
		quadrant("SW", r.South, midLat, r.West, midLon),
		quadrant("SE", r.South, midLat, midLon, r.East),
		quadrant("NW", midLat, r.North, r.West, midLon),
		quadrant("NE", midLat, r.North, midLon, r.East),
	}
}
