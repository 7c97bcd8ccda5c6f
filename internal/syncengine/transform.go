package syncengine

import (
	"strconv"
	"strings"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/types"
)

// getNestedValue descends path (dot-notation, with array indices as plain
// numeric segments) into record, returning nil when any segment is missing
// rather than erroring.
func getNestedValue(record map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var current any = record
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

// setNestedValue assigns value at path within record, creating intermediate
// objects as needed.
func setNestedValue(record map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := record
	for i, seg := range segments {
		if i == len(segments)-1 {
			current[seg] = value
			return
		}
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
}

// applyTransformation implements the built-in transformation kinds. Unknown
// kinds are rejected with an InvalidInput error.
func applyTransformation(kind types.TransformationKind, params map[string]any, value any) (any, error) {
	switch kind {
	case types.TransformUppercase:
		if s, ok := value.(string); ok {
			return strings.ToUpper(s), nil
		}
		return value, nil
	case types.TransformLowercase:
		if s, ok := value.(string); ok {
			return strings.ToLower(s), nil
		}
		return value, nil
	case types.TransformConcat:
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		appendStr, _ := params["append"].(string)
		return s + appendStr, nil
	case types.TransformSplitAddress:
		s, ok := value.(string)
		if !ok {
			return map[string]any{"full_address": value}, nil
		}
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			return map[string]any{"full_address": s}, nil
		}
		return map[string]any{
			"city":  strings.TrimSpace(parts[0]),
			"state": strings.TrimSpace(parts[1]),
		}, nil
	default:
		return nil, apperrors.NewInvalidInput("unknown transformation kind %q", kind)
	}
}

// transformRecord projects sourceRecord through mappings, building the
// target-shaped record one field at a time. Deterministic: same input +
// mappings always produce the same output.
func transformRecord(sourceRecord map[string]any, mappings []types.FieldMapping) (map[string]any, error) {
	target := make(map[string]any)
	for _, mapping := range mappings {
		value := getNestedValue(sourceRecord, mapping.SourcePath)
		if mapping.TransformationKind != "" {
			transformed, err := applyTransformation(mapping.TransformationKind, mapping.TransformationParam, value)
			if err != nil {
				return nil, err
			}
			value = transformed
		}
		setNestedValue(target, mapping.TargetPath, value)
	}
	return target, nil
}
