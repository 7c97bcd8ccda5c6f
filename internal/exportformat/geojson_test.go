package exportformat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLayers() []Layer {
	return []Layer{
		{
			Name: "parcels",
			Features: []Feature{
				{
					Geometry:   map[string]any{"type": "Point", "coordinates": []any{-122.3, 47.6}},
					Properties: map[string]any{"owner": "Jane", "area": 1200.5},
				},
			},
		},
	}
}

func TestGeoJSONHandlerGeneratesValidFeatureCollection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.geojson")

	require.NoError(t, GeoJSONHandler{}.Generate(sampleLayers(), path, nil, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc map[string]any
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])

	features := fc["features"].([]any)
	require.Len(t, features, 1)
	feature := features[0].(map[string]any)
	props := feature["properties"].(map[string]any)
	assert.Equal(t, "parcels", props["layer_name"])
	assert.Equal(t, "Jane", props["owner"])
}

func TestGeoJSONHandlerEmptyLayersProducesEmptyFeatureArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.geojson")

	require.NoError(t, GeoJSONHandler{}.Generate(nil, path, nil, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc map[string]any
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.Equal(t, []any{}, fc["features"])
}
