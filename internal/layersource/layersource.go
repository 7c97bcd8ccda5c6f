// Package layersource supplies the feature data the Export Engine writes
// into artifacts. Providers are registered by tag, the same pattern the
// connector registry uses for sync sources, so a county's real parcel/roads
// backend can be swapped in without touching the engine.
package layersource

import (
	"context"
	"fmt"
	"sync"

	"github.com/countygov/terrasync/internal/exportformat"
	"github.com/countygov/terrasync/internal/types"
)

// Provider extracts the features for one layer, filtered to areaOfInterest
// when it is non-nil.
type Provider interface {
	Features(ctx context.Context, countyID string, layer types.LayerDefinition, areaOfInterest map[string]any) ([]exportformat.Feature, error)
}

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
	active    = "fixture"
)

// Register adds or replaces the provider for tag.
func Register(tag string, p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[tag] = p
}

// SetActive selects which registered provider Get returns.
func SetActive(tag string) {
	mu.Lock()
	defer mu.Unlock()
	active = tag
}

// Get returns the currently active provider.
func Get() (Provider, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := providers[active]
	if !ok {
		return nil, fmt.Errorf("layersource: no provider registered for %q", active)
	}
	return p, nil
}

func init() {
	Register("fixture", FixtureProvider{})
}
