package exportformat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMLHandlerGeneratesFolderPerLayerAndEscapesHTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.kml")

	layers := []Layer{
		{Name: `Parcels & <Zones>`, Features: []Feature{
			{Geometry: map[string]any{"type": "Point", "coordinates": []any{-122.3, 47.6}}, Properties: map[string]any{"owner": "Jane"}},
		}},
	}
	require.NoError(t, KMLHandler{}.Generate(layers, path, nil, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "<kml")
	assert.Contains(t, content, "Parcels &amp; &lt;Zones&gt;")
	assert.Contains(t, content, "<Placemark>")
	assert.Contains(t, content, "<Point><coordinates>-122.3,47.6</coordinates></Point>")
}
