package countyconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
supported_formats: ["geojson", "shapefile"]
default_format: "geojson"
default_projection: "EPSG:4326"
available_projections: ["EPSG:4326"]
available_layers:
  - id: parcels
    geometry_type: Polygon
limits:
  max_concurrent: 2
  max_layers: 5
`

func TestFileLoaderLoadsAndValidatesYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "king.yaml"), []byte(validYAML), 0o644))

	l := FileLoader{Dir: dir}
	cfg, found, err := l.Load(context.Background(), "king")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "king", cfg.CountyID)
	assert.True(t, cfg.SupportsFormat("geojson"))
	assert.True(t, cfg.HasLayer("parcels"))
}

func TestFileLoaderMissingFileIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	l := FileLoader{Dir: dir}

	cfg, found, err := l.Load(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cfg)
}

func TestFileLoaderRejectsInvalidDefaultFormat(t *testing.T) {
	dir := t.TempDir()
	bad := `
supported_formats: ["geojson"]
default_format: "kml"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))

	l := FileLoader{Dir: dir}
	_, found, err := l.Load(context.Background(), "bad")
	assert.False(t, found)
	assert.Error(t, err)
}

func TestFileLoaderRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("not: [valid"), 0o644))

	l := FileLoader{Dir: dir}
	_, _, err := l.Load(context.Background(), "broken")
	assert.Error(t, err)
}
