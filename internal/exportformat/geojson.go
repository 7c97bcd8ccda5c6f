package exportformat

import (
	"encoding/json"
	"io"

	"github.com/countygov/terrasync/internal/atomicfile"
	"github.com/countygov/terrasync/internal/types"
)

// GeoJSONHandler merges every layer into a single FeatureCollection,
// preserving each feature's original property object.
type GeoJSONHandler struct{}

func (GeoJSONHandler) Generate(layers []Layer, outputPath string, _ map[string]any, _ *types.CountyConfiguration) error {
	fc := map[string]any{
		"type":     "FeatureCollection",
		"features": []map[string]any{},
	}
	features := []map[string]any{}
	for _, layer := range layers {
		for _, f := range layer.Features {
			props := make(map[string]any, len(f.Properties)+1)
			for k, v := range f.Properties {
				props[k] = v
			}
			props["layer_name"] = layer.Name
			features = append(features, map[string]any{
				"type":       "Feature",
				"geometry":   f.Geometry,
				"properties": props,
			})
		}
	}
	fc["features"] = features

	return atomicfile.Write(outputPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		return enc.Encode(fc)
	})
}

func (GeoJSONHandler) FileExtension() string { return "geojson" }
func (GeoJSONHandler) MimeType() string      { return "application/geo+json" }
