package layersource

import (
	"context"
	"fmt"

	"github.com/countygov/terrasync/internal/exportformat"
	"github.com/countygov/terrasync/internal/types"
)

// FixtureProvider synthesizes a small, deterministic feature set per layer so
// the export pipeline can be exercised end to end without a live parcel or
// roads backend. Point layers get one point per fixture row, LineString
// layers a two-vertex line; everything else gets a minimal polygon.
type FixtureProvider struct{}

func (FixtureProvider) Features(_ context.Context, countyID string, layer types.LayerDefinition, areaOfInterest map[string]any) ([]exportformat.Feature, error) {
	var out []exportformat.Feature
	for i := 0; i < 3; i++ {
		feature := exportformat.Feature{
			Geometry: fixtureGeometry(layer.GeometryType, i),
			Properties: map[string]any{
				"layer_id": layer.ID,
				"county":   countyID,
				"seq":      i,
				"name":     fmt.Sprintf("%s-%d", layer.ID, i),
			},
		}
		if areaOfInterest != nil && !intersectsBBox(feature.Geometry, areaOfInterest) {
			continue
		}
		out = append(out, feature)
	}
	return out, nil
}

func fixtureGeometry(geometryType string, index int) map[string]any {
	base := float64(index)
	switch geometryType {
	case "Point":
		return map[string]any{
			"type":        "Point",
			"coordinates": []any{-122.0 + base*0.01, 47.0 + base*0.01},
		}
	case "LineString":
		return map[string]any{
			"type": "LineString",
			"coordinates": []any{
				[]any{-122.0 + base*0.01, 47.0},
				[]any{-122.0 + base*0.01, 47.01},
			},
		}
	default:
		return map[string]any{
			"type": "Polygon",
			"coordinates": []any{
				[]any{
					[]any{-122.0 + base*0.01, 47.0},
					[]any{-122.0 + base*0.01, 47.01},
					[]any{-121.99 + base*0.01, 47.01},
					[]any{-121.99 + base*0.01, 47.0},
					[]any{-122.0 + base*0.01, 47.0},
				},
			},
		}
	}
}

// intersectsBBox is a coarse point-in-bbox / any-vertex-in-bbox spatial
// filter: the area_of_interest geometry's own coordinate envelope is treated
// as an inclusive bounding box.
func intersectsBBox(geom map[string]any, areaOfInterest map[string]any) bool {
	minX, minY, maxX, maxY, ok := bboxOf(areaOfInterest)
	if !ok {
		return true
	}
	for _, pt := range flattenCoordinates(geom["coordinates"]) {
		if pt[0] >= minX && pt[0] <= maxX && pt[1] >= minY && pt[1] <= maxY {
			return true
		}
	}
	return false
}

func bboxOf(geom map[string]any) (minX, minY, maxX, maxY float64, ok bool) {
	pts := flattenCoordinates(geom["coordinates"])
	if len(pts) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = pts[0][0], pts[0][1]
	maxX, maxY = pts[0][0], pts[0][1]
	for _, p := range pts[1:] {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return minX, minY, maxX, maxY, true
}

func flattenCoordinates(v any) [][2]float64 {
	switch c := v.(type) {
	case []any:
		if len(c) == 2 {
			if x, okx := toFloat(c[0]); okx {
				if y, oky := toFloat(c[1]); oky {
					return [][2]float64{{x, y}}
				}
			}
		}
		var out [][2]float64
		for _, el := range c {
			out = append(out, flattenCoordinates(el)...)
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
