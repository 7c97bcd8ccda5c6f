package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countygov/terrasync/internal/types"
)

func TestDiffRecordsClassifiesAddedModifiedUnchangedDeleted(t *testing.T) {
	sources := []map[string]any{
		{"id": "1", "name": "Jane"},
		{"id": "2", "name": "Bob"},
		{"id": "3", "name": "New"},
	}
	targets := []map[string]any{
		{"id": "1", "name": "Jane"},
		{"id": "2", "name": "Robert"},
		{"id": "4", "name": "Gone"},
	}

	results := diffRecords(sources, targets, "id")
	byID := map[string]diffResult{}
	for _, r := range results {
		byID[r.entityID] = r
	}

	require.Contains(t, byID, "1")
	assert.Equal(t, types.ChangeUnchanged, byID["1"].changeType)

	require.Contains(t, byID, "2")
	assert.Equal(t, types.ChangeModified, byID["2"].changeType)

	require.Contains(t, byID, "3")
	assert.Equal(t, types.ChangeAdded, byID["3"].changeType)

	require.Contains(t, byID, "4")
	assert.Equal(t, types.ChangeDeleted, byID["4"].changeType)
}

func TestEntityIDFieldDefaultsToID(t *testing.T) {
	assert.Equal(t, "id", entityIDField(map[string]any{}))
	assert.Equal(t, "parcel_number", entityIDField(map[string]any{"entity_id_field": "parcel_number"}))
}

func TestEntityIDFallsBackToIndexWhenFieldMissing(t *testing.T) {
	assert.Equal(t, "5", entityID(map[string]any{}, "id", 5))
	assert.Equal(t, "abc", entityID(map[string]any{"id": "abc"}, "id", 5))
}

func TestCopyRecordIsIndependentOfOriginal(t *testing.T) {
	original := map[string]any{"a": 1}
	cp := copyRecord(original)
	cp["a"] = 2
	assert.Equal(t, 1, original["a"])
}
