package countyconfig

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/countygov/terrasync/internal/types"
)

// FileLoader resolves a county's configuration from a YAML file named
// "<county_id>.yaml" under Dir. A missing file is reported as not-found
// rather than an error, so the cache falls back to its conservative default.
type FileLoader struct {
	Dir string
}

func (l FileLoader) Load(_ context.Context, countyID string) (*types.CountyConfiguration, bool, error) {
	path := filepath.Join(l.Dir, countyID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg types.CountyConfiguration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, false, err
	}
	cfg.CountyID = countyID
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}
