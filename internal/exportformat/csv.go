package exportformat

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/countygov/terrasync/internal/atomicfile"
	"github.com/countygov/terrasync/internal/types"
)

// CSVHandler writes one row per feature, with columns = the sorted union of
// every property key across all layers plus layer_name and geometry_wkt.
// Embedded quotes are handled by encoding/csv's own RFC 4180 escaping, which
// doubles quote characters exactly as the contract requires.
type CSVHandler struct{}

func (CSVHandler) Generate(layers []Layer, outputPath string, _ map[string]any, _ *types.CountyConfiguration) error {
	keySet := make(map[string]struct{})
	for _, layer := range layers {
		for _, f := range layer.Features {
			for k := range f.Properties {
				keySet[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := append([]string{"layer_name", "geometry_wkt"}, keys...)

	return atomicfile.Write(outputPath, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, layer := range layers {
			for _, f := range layer.Features {
				row := make([]string, len(header))
				row[0] = layer.Name
				row[1] = geometryToWKT(f.Geometry)
				for i, k := range keys {
					if v, ok := f.Properties[k]; ok {
						row[2+i] = fmt.Sprintf("%v", v)
					}
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func (CSVHandler) FileExtension() string { return "csv" }
func (CSVHandler) MimeType() string      { return "text/csv" }

// geometryToWKT renders a GeoJSON-shaped geometry for the geometry_wkt
// column. Only Points are written as full WKT with coordinates; a Polygon is
// written as the placeholder "POLYGON (...)" without its coordinates, and any
// other geometry as its bare type name.
func geometryToWKT(geom map[string]any) string {
	if geom == nil {
		return ""
	}
	kind, _ := geom["type"].(string)
	switch kind {
	case "Point":
		coords, _ := geom["coordinates"].([]any)
		if len(coords) == 2 {
			return fmt.Sprintf("POINT (%v %v)", coords[0], coords[1])
		}
	case "Polygon":
		return "POLYGON (...)"
	}
	return kind
}
