// Package connector defines the pluggable source/target interface sync pairs
// bind to by tag string, and registers the reference connectors ("file",
// "database", "api") that exercise the sync pipeline end to end. Real
// deployments register additional connectors against the same registry; the
// engine depends only on the Source/Target interfaces.
package connector

import (
	"context"
	"fmt"
	"sync"
)

// LoadResult reports the outcome of a best-effort batch load.
type LoadResult struct {
	SuccessCount int
	ErrorCount   int
	Errors       []string
}

// Source extracts an ordered, finite sequence of records from one endpoint.
type Source interface {
	Extract(ctx context.Context, config map[string]any) ([]map[string]any, error)
}

// Target applies records to one endpoint, best-effort per record.
type Target interface {
	Load(ctx context.Context, records []map[string]any, config map[string]any) (*LoadResult, error)
}

var (
	mu      sync.RWMutex
	sources = make(map[string]Source)
	targets = make(map[string]Target)
)

// RegisterSource adds a source connector under tag.
func RegisterSource(tag string, s Source) {
	mu.Lock()
	defer mu.Unlock()
	sources[tag] = s
}

// RegisterTarget adds a target connector under tag.
func RegisterTarget(tag string, t Target) {
	mu.Lock()
	defer mu.Unlock()
	targets[tag] = t
}

// GetSource looks up a source connector by tag.
func GetSource(tag string) (Source, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := sources[tag]
	if !ok {
		return nil, fmt.Errorf("connector: unknown source system %q", tag)
	}
	return s, nil
}

// GetTarget looks up a target connector by tag.
func GetTarget(tag string) (Target, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := targets[tag]
	if !ok {
		return nil, fmt.Errorf("connector: unknown target system %q", tag)
	}
	return t, nil
}

func init() {
	RegisterSource("file", FileSource{})
	RegisterSource("database", DatabaseConnector{})
	RegisterSource("api", APISource{})
	RegisterTarget("database", DatabaseConnector{})
	RegisterTarget("file", FileSource{})
}
