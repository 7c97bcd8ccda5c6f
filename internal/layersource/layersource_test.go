package layersource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countygov/terrasync/internal/exportformat"
	"github.com/countygov/terrasync/internal/types"
)

func TestGetReturnsFixtureProviderByDefault(t *testing.T) {
	p, err := Get()
	require.NoError(t, err)
	assert.IsType(t, FixtureProvider{}, p)
}

type stubProvider struct{}

func (stubProvider) Features(context.Context, string, types.LayerDefinition, map[string]any) ([]exportformat.Feature, error) {
	return nil, nil
}

func TestSetActiveSwitchesProvider(t *testing.T) {
	Register("stub", stubProvider{})
	SetActive("stub")
	defer SetActive("fixture")

	p, err := Get()
	require.NoError(t, err)
	assert.IsType(t, stubProvider{}, p)
}

func TestGetUnknownActiveTagErrors(t *testing.T) {
	SetActive("never-registered")
	defer SetActive("fixture")

	_, err := Get()
	assert.Error(t, err)
}

func TestFixtureProviderGeneratesThreeFeaturesByDefault(t *testing.T) {
	p := FixtureProvider{}
	features, err := p.Features(context.Background(), "king", types.LayerDefinition{ID: "parcels", GeometryType: "Polygon"}, nil)
	require.NoError(t, err)
	assert.Len(t, features, 3)
	assert.Equal(t, "parcels", features[0].Properties["layer_id"])
	assert.Equal(t, "king", features[0].Properties["county"])
}

func TestFixtureProviderPointGeometry(t *testing.T) {
	p := FixtureProvider{}
	features, err := p.Features(context.Background(), "king", types.LayerDefinition{ID: "hydrants", GeometryType: "Point"}, nil)
	require.NoError(t, err)
	require.Len(t, features, 3)
	assert.Equal(t, "Point", features[0].Geometry["type"])
}

func TestFixtureProviderAppliesAreaOfInterestFilter(t *testing.T) {
	p := FixtureProvider{}

	narrowBBox := map[string]any{
		"type": "Polygon",
		"coordinates": []any{
			[]any{
				[]any{-122.0, 47.0},
				[]any{-122.0, 47.001},
			},
		},
	}

	features, err := p.Features(context.Background(), "king", types.LayerDefinition{ID: "hydrants", GeometryType: "Point"}, narrowBBox)
	require.NoError(t, err)
	assert.Len(t, features, 1, "only the index-0 fixture point falls inside the narrow bbox")
}

func TestFixtureProviderNilAreaOfInterestReturnsAll(t *testing.T) {
	p := FixtureProvider{}
	features, err := p.Features(context.Background(), "king", types.LayerDefinition{ID: "hydrants", GeometryType: "Point"}, nil)
	require.NoError(t, err)
	assert.Len(t, features, 3)
}
