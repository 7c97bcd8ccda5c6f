package exportengine

import (
	"math"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/countyconfig"
	"github.com/countygov/terrasync/internal/types"
)

var validGeometryTypes = map[string]bool{
	"Point": true, "MultiPoint": true,
	"LineString": true, "MultiLineString": true,
	"Polygon": true, "MultiPolygon": true,
	"GeometryCollection": true,
}

func validateExportRequest(req CreateExportRequest, county *types.CountyConfiguration) error {
	if len(req.Layers) == 0 {
		return apperrors.NewInvalidInput("export request must specify at least one layer")
	}
	if req.AreaOfInterest != nil {
		if err := validateGeoJSONGeometry(req.AreaOfInterest); err != nil {
			return err
		}
	}
	if !county.SupportsFormat(req.ExportFormat) {
		return apperrors.NewInvalidInput("export format %q is not supported by county %q", req.ExportFormat, req.CountyID)
	}
	for _, layerID := range req.Layers {
		if !county.HasLayer(layerID) {
			return apperrors.NewInvalidInput("layer %q is not defined for county %q", layerID, req.CountyID)
		}
	}
	return countyconfig.ValidateAgainstLimits(len(req.Layers), estimateAreaSqKm(req.AreaOfInterest), estimateFeatureCount(req), county)
}

// validateGeoJSONGeometry checks that v is structurally a GeoJSON geometry
// object: a "type" key naming a recognized geometry kind and a "coordinates"
// key (GeometryCollection uses "geometries" instead).
func validateGeoJSONGeometry(v map[string]any) error {
	kind, ok := v["type"].(string)
	if !ok || !validGeometryTypes[kind] {
		return apperrors.NewInvalidInput("area_of_interest must be a valid GeoJSON geometry")
	}
	if kind == "GeometryCollection" {
		if _, ok := v["geometries"].([]any); !ok {
			return apperrors.NewInvalidInput("area_of_interest GeometryCollection must have a geometries array")
		}
		return nil
	}
	if _, ok := v["coordinates"]; !ok {
		return apperrors.NewInvalidInput("area_of_interest must have a coordinates array")
	}
	return nil
}

// estimateAreaSqKm approximates an area_of_interest's extent by converting its
// coordinate envelope to square kilometers with an equirectangular projection
// centered on the envelope's mid-latitude. That approximation is accurate
// enough at county scale to enforce max_area_sq_km without a full geodesic
// library in the dependency graph.
func estimateAreaSqKm(areaOfInterest map[string]any) float64 {
	if areaOfInterest == nil {
		return 0
	}
	minX, minY, maxX, maxY, ok := bboxOf(areaOfInterest)
	if !ok {
		return 0
	}

	const kmPerDegLat = 110.574
	midLatRad := (minY + maxY) / 2 * math.Pi / 180
	kmPerDegLon := 111.320 * math.Cos(midLatRad)

	widthKm := (maxX - minX) * kmPerDegLon
	heightKm := (maxY - minY) * kmPerDegLat
	return math.Abs(widthKm * heightKm)
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

// estimateFeatureCount is bounded at the fixture provider's fixed yield per
// layer; a real layer source would report its own row-count estimate here.
func estimateFeatureCount(req CreateExportRequest) int {
	return len(req.Layers) * 3
}
