package syncengine

import (
	"fmt"
	"reflect"

	"github.com/countygov/terrasync/internal/types"
)

// diffResult pairs one entity's classified change with its transformed
// source/target snapshots.
type diffResult struct {
	entityID    string
	changeType  types.ChangeType
	sourceData  map[string]any
	targetData  map[string]any
}

// entityIDField names the key used to correlate source and target records;
// it defaults to "id" when the pair's source config does not override it.
func entityIDField(sourceConfig map[string]any) string {
	if field, ok := sourceConfig["entity_id_field"].(string); ok && field != "" {
		return field
	}
	return "id"
}

func entityID(record map[string]any, field string, fallback int) string {
	if v, ok := record[field]; ok {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%d", fallback)
}

// diffRecords classifies each transformed source record against the target
// set, indexed by entityIDField. Records present only in target are reported
// as "deleted".
func diffRecords(transformedSources []map[string]any, targets []map[string]any, idField string) []diffResult {
	targetByID := make(map[string]map[string]any, len(targets))
	for i, t := range targets {
		targetByID[entityID(t, idField, i)] = t
	}

	seen := make(map[string]bool, len(transformedSources))
	var results []diffResult
	for i, src := range transformedSources {
		id := entityID(src, idField, i)
		seen[id] = true
		target, existed := targetByID[id]
		switch {
		case !existed:
			results = append(results, diffResult{entityID: id, changeType: types.ChangeAdded, sourceData: src})
		case reflect.DeepEqual(normalizeForDiff(src), normalizeForDiff(target)):
			results = append(results, diffResult{entityID: id, changeType: types.ChangeUnchanged, sourceData: src, targetData: target})
		default:
			results = append(results, diffResult{entityID: id, changeType: types.ChangeModified, sourceData: src, targetData: target})
		}
	}

	for i, t := range targets {
		id := entityID(t, idField, i)
		if !seen[id] {
			results = append(results, diffResult{entityID: id, changeType: types.ChangeDeleted, targetData: t})
		}
	}

	return results
}

// normalizeForDiff returns record unchanged: the equality comparison covers
// every field, the id field included.
func normalizeForDiff(record map[string]any) map[string]any {
	return record
}

// copyRecord makes a shallow copy so per-field conflict resolution never
// mutates the diff's original source snapshot.
func copyRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}
