// Package countyconfig provides a process-wide, concurrency-safe cache of
// per-county capability configuration: supported export formats, available
// layers, and rate limits. Entries are immutable snapshots; refresh is by
// full eviction of a single key, never partial mutation, so readers never
// observe a torn config.
package countyconfig

import (
	"context"
	"sync"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/types"
)

// Loader resolves a county's configuration from its backing source (a
// database, a config file, an admin API) on cache miss.
type Loader interface {
	Load(ctx context.Context, countyID string) (*types.CountyConfiguration, bool, error)
}

// Cache is a read-mostly, write-rare store of CountyConfiguration snapshots.
type Cache struct {
	mu     sync.RWMutex
	byID   map[string]*types.CountyConfiguration
	loader Loader
}

// New constructs a Cache backed by loader.
func New(loader Loader) *Cache {
	return &Cache{
		byID:   make(map[string]*types.CountyConfiguration),
		loader: loader,
	}
}

// Get returns the cached configuration for countyID, loading and caching it
// on first access. When the backing store has no entry, a deterministic
// conservative default is synthesized and cached in its place.
func (c *Cache) Get(ctx context.Context, countyID string) (*types.CountyConfiguration, error) {
	c.mu.RLock()
	cfg, ok := c.byID[countyID]
	c.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	loaded, found, err := c.loader.Load(ctx, countyID)
	if err != nil {
		return nil, err
	}
	if !found {
		loaded = defaultConfiguration(countyID)
	}

	c.mu.Lock()
	c.byID[countyID] = loaded
	c.mu.Unlock()

	return loaded, nil
}

// Refresh evicts countyID so the next Get reloads it from the backing store.
func (c *Cache) Refresh(countyID string) {
	c.mu.Lock()
	delete(c.byID, countyID)
	c.mu.Unlock()
}

// defaultConfiguration synthesizes the conservative fallback for a county the
// backing store has no record of: one polygon layer, GeoJSON only, small
// limits.
func defaultConfiguration(countyID string) *types.CountyConfiguration {
	return &types.CountyConfiguration{
		CountyID:              countyID,
		SupportedFormats:      []types.ExportFormat{types.FormatGeoJSON},
		DefaultFormat:         types.FormatGeoJSON,
		DefaultProjection:     "EPSG:4326",
		AvailableProjections:  []string{"EPSG:4326"},
		AvailableLayers: []types.LayerDefinition{
			{
				ID:           "parcels",
				GeometryType: "Polygon",
			},
		},
		Limits: types.RateLimits{
			MaxConcurrent: 1,
			MaxPerDay:     10,
			MaxPerUser:    5,
			MaxAreaSqKm:   50,
			MaxLayers:     1,
			MaxFeatures:   1000,
		},
	}
}

// ApplyDefaults merges cfg.DefaultParameters into params without overriding
// any key the caller already supplied. Applying it twice is idempotent.
func ApplyDefaults(params map[string]any, cfg *types.CountyConfiguration) map[string]any {
	merged := make(map[string]any, len(params)+len(cfg.DefaultParameters))
	for k, v := range cfg.DefaultParameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// ValidateAgainstLimits enforces the county's rate limits on a requested
// export. Returns nil when within bounds.
func ValidateAgainstLimits(layerCount int, areaSqKm float64, estimatedFeatures int, cfg *types.CountyConfiguration) error {
	switch {
	case cfg.Limits.MaxLayers > 0 && layerCount > cfg.Limits.MaxLayers:
		return limitError("layer count %d exceeds county max %d", layerCount, cfg.Limits.MaxLayers)
	case cfg.Limits.MaxAreaSqKm > 0 && areaSqKm > cfg.Limits.MaxAreaSqKm:
		return limitError("area %.2f sq km exceeds county max %.2f", areaSqKm, cfg.Limits.MaxAreaSqKm)
	case cfg.Limits.MaxFeatures > 0 && estimatedFeatures > cfg.Limits.MaxFeatures:
		return limitError("estimated features %d exceeds county max %d", estimatedFeatures, cfg.Limits.MaxFeatures)
	}
	return nil
}

func limitError(format string, args ...any) error {
	return apperrors.NewInvalidInput(format, args...)
}
