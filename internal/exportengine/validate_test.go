package exportengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/countygov/terrasync/internal/types"
)

func TestValidateExportRequestRequiresAtLeastOneLayer(t *testing.T) {
	err := validateExportRequest(CreateExportRequest{CountyID: "king", ExportFormat: types.FormatGeoJSON}, testCounty())
	assert.Error(t, err)
}

func TestValidateExportRequestRejectsUnsupportedFormat(t *testing.T) {
	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatShapefile, Layers: []string{"parcels"},
	}, testCounty())
	assert.Error(t, err)
}

func TestValidateExportRequestRejectsUnknownLayer(t *testing.T) {
	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatGeoJSON, Layers: []string{"nope"},
	}, testCounty())
	assert.Error(t, err)
}

func TestValidateExportRequestAcceptsValidAreaOfInterest(t *testing.T) {
	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatGeoJSON, Layers: []string{"parcels"},
		AreaOfInterest: map[string]any{
			"type":        "Polygon",
			"coordinates": []any{[]any{[]any{-122.0, 47.0}}},
		},
	}, testCounty())
	assert.NoError(t, err)
}

func TestValidateExportRequestRejectsMalformedAreaOfInterest(t *testing.T) {
	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatGeoJSON, Layers: []string{"parcels"},
		AreaOfInterest: map[string]any{"type": "NotAGeometry"},
	}, testCounty())
	assert.Error(t, err)
}

func TestValidateGeoJSONGeometryRequiresCoordinates(t *testing.T) {
	err := validateGeoJSONGeometry(map[string]any{"type": "Point"})
	assert.Error(t, err)
}

func TestValidateGeoJSONGeometryCollectionRequiresGeometries(t *testing.T) {
	err := validateGeoJSONGeometry(map[string]any{"type": "GeometryCollection"})
	assert.Error(t, err)

	err = validateGeoJSONGeometry(map[string]any{"type": "GeometryCollection", "geometries": []any{}})
	assert.NoError(t, err)
}

func TestEstimateAreaSqKmApproximatesBoundingBoxArea(t *testing.T) {
	// 1 degree of longitude by 1 degree of latitude straddling 47-48N:
	// ~111.32*cos(47.5deg) km wide by ~110.574 km tall, roughly 8300 sq km.
	area := estimateAreaSqKm(map[string]any{
		"type": "Polygon",
		"coordinates": []any{[]any{
			[]any{-123.0, 47.0},
			[]any{-123.0, 48.0},
			[]any{-122.0, 48.0},
			[]any{-122.0, 47.0},
			[]any{-123.0, 47.0},
		}},
	})
	assert.InDelta(t, 8300, area, 200)
}

func TestEstimateAreaSqKmNilAreaOfInterestIsZero(t *testing.T) {
	assert.Equal(t, float64(0), estimateAreaSqKm(nil))
}

func TestValidateExportRequestRejectsOversizedAreaOfInterest(t *testing.T) {
	county := testCounty()
	county.Limits.MaxAreaSqKm = 10

	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatGeoJSON, Layers: []string{"parcels"},
		AreaOfInterest: map[string]any{
			"type": "Polygon",
			"coordinates": []any{[]any{
				[]any{-123.0, 47.0},
				[]any{-123.0, 48.0},
				[]any{-122.0, 48.0},
				[]any{-122.0, 47.0},
				[]any{-123.0, 47.0},
			}},
		},
	}, county)
	assert.Error(t, err)
}

func TestValidateExportRequestEnforcesLayerCountLimit(t *testing.T) {
	county := testCounty()
	county.Limits.MaxLayers = 1
	err := validateExportRequest(CreateExportRequest{
		CountyID: "king", ExportFormat: types.FormatGeoJSON, Layers: []string{"parcels", "hydrants"},
	}, county)
	assert.Error(t, err)
}
