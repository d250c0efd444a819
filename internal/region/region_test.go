package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoreline-data/beachsync/internal/model"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	regions, err := Load("")
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, "Western Australia", regions[0].Name)
	for _, r := range regions {
		assert.NoError(t, Validate(r))
	}
}

func TestLoad_FilePreservesOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := `regions:
  - name: Algarve
    south: 36.9
    north: 37.5
    west: -9.0
    east: -7.3
  - name: Costa Brava
    south: 41.6
    north: 42.5
    west: 2.7
    east: 3.4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	regions, err := Load(path)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "Algarve", regions[0].Name)
	assert.Equal(t, "Costa Brava", regions[1].Name)
	assert.InDelta(t, -9.0, regions[0].West, 1e-9)
}

func TestLoad_RejectsInvalidRegion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := `regions:
  - name: Upside Down
    south: 40.0
    north: 30.0
    west: 0.0
    east: 5.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyRegionList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: []\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		region  model.Region
		wantErr bool
	}{
		{"valid", model.Region{Name: "A", South: -1, North: 1, West: -1, East: 1}, false},
		{"missing name", model.Region{South: -1, North: 1, West: -1, East: 1}, true},
		{"south above north", model.Region{Name: "A", South: 2, North: 1, West: -1, East: 1}, true},
		{"west beyond range", model.Region{Name: "A", South: -1, North: 1, West: -181, East: 1}, true},
		{"east beyond range", model.Region{Name: "A", South: -1, North: 1, West: -1, East: 181}, true},
		{"latitude beyond range", model.Region{Name: "A", South: -91, North: 1, West: -1, East: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.region)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	r := model.Region{Name: "Big", South: -40, North: -10, West: 110, East: 150}
	quads := Split(r)

	assert.Equal(t, "Big-SW", quads[0].Name)
	assert.Equal(t, "Big-NE", quads[3].Name)

	for _, q := range quads {
		assert.NoError(t, Validate(q))
	}

	// Quadrants tile the parent box.
	assert.InDelta(t, r.South, quads[0].South, 1e-9)
	assert.InDelta(t, r.North, quads[3].North, 1e-9)
	assert.InDelta(t, quads[0].North, quads[2].South, 1e-9)
	assert.InDelta(t, quads[0].East, quads[1].West, 1e-9)
}
