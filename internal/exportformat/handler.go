// Package exportformat implements the pluggable writers that turn an
// in-memory feature set into an on-disk geospatial artifact. Handlers are
// registered by types.ExportFormat, the same registry-by-tag pattern used for
// connectors and conflict strategies, and every handler writes atomically
// (temp path, then rename): GeoJSON, CSV, KML and Shapefile via
// internal/atomicfile, GeoPackage through its own temp-file-and-rename step.
package exportformat

import (
	"fmt"
	"sync"

	"github.com/countygov/terrasync/internal/types"
)

// Feature is one geometry + properties pair within a layer.
type Feature struct {
	Geometry   map[string]any
	Properties map[string]any
}

// Layer is one named collection of features to export.
type Layer struct {
	Name     string
	Features []Feature
}

// Handler writes a set of layers to a single artifact at outputPath.
type Handler interface {
	Generate(layers []Layer, outputPath string, parameters map[string]any, county *types.CountyConfiguration) error
	FileExtension() string
	MimeType() string
}

var (
	mu       sync.RWMutex
	handlers = make(map[types.ExportFormat]Handler)
)

// Register adds or replaces the handler for format.
func Register(format types.ExportFormat, h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[format] = h
}

// Get looks up the handler for format.
func Get(format types.ExportFormat) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := handlers[format]
	if !ok {
		return nil, fmt.Errorf("exportformat: no handler registered for %q", format)
	}
	return h, nil
}

func init() {
	Register(types.FormatGeoJSON, GeoJSONHandler{})
	Register(types.FormatCSV, CSVHandler{})
	Register(types.FormatKML, KMLHandler{})
	Register(types.FormatShapefile, ShapefileHandler{})
	Register(types.FormatGeoPackage, GeoPackageHandler{})
}
