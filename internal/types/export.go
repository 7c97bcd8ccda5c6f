package types

// ExportFormat names a supported geospatial export artifact type.
type ExportFormat string

const (
	FormatShapefile  ExportFormat = "shapefile"
	FormatGeoJSON    ExportFormat = "geojson"
	FormatKML        ExportFormat = "kml"
	FormatCSV        ExportFormat = "csv"
	FormatGeoPackage ExportFormat = "geopackage"
)

// GisExport is one export request and its lifecycle.
type GisExport struct {
	ID               string         `json:"id"`
	CountyID         string         `json:"county_id"`
	ExportFormat     ExportFormat   `json:"export_format"`
	Layers           []string       `json:"layers"`
	AreaOfInterest   map[string]any `json:"area_of_interest,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	CreatedBy        string         `json:"created_by"`
	State            OperationState `json:"state"`
	ProgressPercent  int            `json:"progress_percent"`
	ResultURL        string         `json:"result_url,omitempty"`
	FileSizeBytes    int64          `json:"file_size_bytes,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

// LayerDefinition is one layer a county exposes for export.
type LayerDefinition struct {
	ID                  string         `json:"id"`
	GeometryType        string         `json:"geometry_type"`
	AttributeSchema     map[string]any `json:"attribute_schema,omitempty"`
	RequiredPermissions []string       `json:"required_permissions,omitempty"`
	DefaultParameters   map[string]any `json:"default_parameters,omitempty"`
}

// RateLimits bounds the concurrency and size of exports for a county.
type RateLimits struct {
	MaxConcurrent int     `json:"max_concurrent"`
	MaxPerDay     int     `json:"max_per_day"`
	MaxPerUser    int     `json:"max_per_user"`
	MaxAreaSqKm   float64 `json:"max_area_sq_km"`
	MaxLayers     int     `json:"max_layers"`
	MaxFeatures   int     `json:"max_features"`
}

// CountyConfiguration is the per-tenant capability surface for exports.
type CountyConfiguration struct {
	CountyID            string            `json:"county_id"`
	SupportedFormats    []ExportFormat    `json:"supported_formats"`
	DefaultFormat       ExportFormat      `json:"default_format"`
	DefaultProjection   string            `json:"default_projection"`
	AvailableProjections []string         `json:"available_projections"`
	AvailableLayers     []LayerDefinition `json:"available_layers"`
	Limits              RateLimits        `json:"limits"`
	DefaultParameters   map[string]any    `json:"default_parameters,omitempty"`
}

// SupportsFormat reports whether f is among the county's supported formats.
func (c *CountyConfiguration) SupportsFormat(f ExportFormat) bool {
	for _, sf := range c.SupportedFormats {
		if sf == f {
			return true
		}
	}
	return false
}

// HasLayer reports whether id names a layer the county exposes.
func (c *CountyConfiguration) HasLayer(id string) bool {
	for _, l := range c.AvailableLayers {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Validate checks the county configuration's declared invariant.
func (c *CountyConfiguration) Validate() error {
	if !c.SupportsFormat(c.DefaultFormat) {
		return errInvalid("default_format", string(c.DefaultFormat))
	}
	return nil
}
