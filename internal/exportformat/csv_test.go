package exportformat

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVHandlerWritesSortedColumnUnion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	layers := []Layer{
		{Name: "parcels", Features: []Feature{
			{Geometry: map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}}, Properties: map[string]any{"zeta": "z", "alpha": "a"}},
		}},
	}
	require.NoError(t, CSVHandler{}.Generate(layers, path, nil, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"layer_name", "geometry_wkt", "alpha", "zeta"}, rows[0])
	assert.Equal(t, "parcels", rows[1][0])
	assert.True(t, strings.HasPrefix(rows[1][1], "POINT"))
}

func TestCSVHandlerEscapesEmbeddedCommasAndQuotes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	layers := []Layer{
		{Name: "parcels", Features: []Feature{
			{Geometry: nil, Properties: map[string]any{"note": `has, a comma and "quotes"`}},
		}},
	}
	require.NoError(t, CSVHandler{}.Generate(layers, path, nil, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `has, a comma and "quotes"`, rows[1][2])
}
