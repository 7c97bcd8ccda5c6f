package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesBuiltinSourcesAndTargets(t *testing.T) {
	for _, tag := range []string{"file", "database", "api"} {
		_, err := GetSource(tag)
		require.NoError(t, err, "source %q should be registered", tag)
	}
	for _, tag := range []string{"file", "database"} {
		_, err := GetTarget(tag)
		require.NoError(t, err, "target %q should be registered", tag)
	}
}

func TestGetSourceUnknownTagErrors(t *testing.T) {
	_, err := GetSource("nonexistent")
	assert.Error(t, err)
}

func TestGetTargetUnknownTagErrors(t *testing.T) {
	_, err := GetTarget("nonexistent")
	assert.Error(t, err)
}

func TestRegisterSourceAddsNewTag(t *testing.T) {
	RegisterSource("test-custom-source", FileSource{})
	_, err := GetSource("test-custom-source")
	assert.NoError(t, err)
}
