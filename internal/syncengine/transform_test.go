package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countygov/terrasync/internal/types"
)

func TestGetNestedValueDescendsDotPath(t *testing.T) {
	record := map[string]any{
		"address": map[string]any{"city": "Springfield"},
	}
	assert.Equal(t, "Springfield", getNestedValue(record, "address.city"))
}

func TestGetNestedValueMissingSegmentReturnsNil(t *testing.T) {
	record := map[string]any{"address": map[string]any{}}
	assert.Nil(t, getNestedValue(record, "address.city"))
	assert.Nil(t, getNestedValue(record, "missing.deeper"))
}

func TestGetNestedValueIndexesArrays(t *testing.T) {
	record := map[string]any{"tags": []any{"a", "b", "c"}}
	assert.Equal(t, "b", getNestedValue(record, "tags.1"))
	assert.Nil(t, getNestedValue(record, "tags.9"))
}

func TestSetNestedValueCreatesIntermediateObjects(t *testing.T) {
	record := map[string]any{}
	setNestedValue(record, "address.city", "Springfield")
	addr := record["address"].(map[string]any)
	assert.Equal(t, "Springfield", addr["city"])
}

func TestApplyTransformationUppercaseLowercase(t *testing.T) {
	v, err := applyTransformation(types.TransformUppercase, nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", v)

	v, err = applyTransformation(types.TransformLowercase, nil, "HELLO")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestApplyTransformationConcat(t *testing.T) {
	v, err := applyTransformation(types.TransformConcat, map[string]any{"append": "-suffix"}, "value")
	require.NoError(t, err)
	assert.Equal(t, "value-suffix", v)
}

func TestApplyTransformationSplitAddress(t *testing.T) {
	v, err := applyTransformation(types.TransformSplitAddress, nil, "Springfield, IL")
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, "Springfield", m["city"])
	assert.Equal(t, "IL", m["state"])
}

func TestApplyTransformationSplitAddressWithoutComma(t *testing.T) {
	v, err := applyTransformation(types.TransformSplitAddress, nil, "Springfield")
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, "Springfield", m["full_address"])
}

func TestApplyTransformationUnknownKindErrors(t *testing.T) {
	_, err := applyTransformation(types.TransformationKind("bogus"), nil, "x")
	assert.Error(t, err)
}

func TestTransformRecordAppliesMappingsInOrder(t *testing.T) {
	source := map[string]any{"first_name": "jane", "raw_address": "Seattle, WA"}
	mappings := []types.FieldMapping{
		{SourcePath: "first_name", TargetPath: "name", TransformationKind: types.TransformUppercase},
		{SourcePath: "raw_address", TargetPath: "address", TransformationKind: types.TransformSplitAddress},
	}

	target, err := transformRecord(source, mappings)
	require.NoError(t, err)
	assert.Equal(t, "JANE", target["name"])
	addr := target["address"].(map[string]any)
	assert.Equal(t, "Seattle", addr["city"])
}
