// Package conflict detects field-level differences between a source and
// target record and resolves them according to a pluggable strategy. The
// built-in strategies and their tie-break semantics mirror the reference
// conflict resolution service this platform's engines were modeled on:
// source_wins, target_wins, newer_wins (ties go to target), and manual.
package conflict

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/types"
)

// ConflictKind classifies one FieldConflict.
type ConflictKind string

const (
	ValueDifference ConflictKind = "value_difference"
	TypeMismatch    ConflictKind = "type_mismatch"
	MissingField    ConflictKind = "missing_field"
	ExtraField      ConflictKind = "extra_field"
)

// FieldConflict is one differing field between source and target.
type FieldConflict struct {
	FieldPath   string
	SourceValue any
	TargetValue any
	Kind        ConflictKind
}

// Context carries the identifiers and timestamps a resolution strategy may
// need.
type Context struct {
	PairID          string
	OperationID     string
	FieldPath       string
	SourceTimestamp *time.Time
	TargetTimestamp *time.Time
	UserPreferences map[string]any
}

// ResolutionKind names the outcome a Strategy chose.
type ResolutionKind string

const (
	UseSource ResolutionKind = "use_source"
	UseTarget ResolutionKind = "use_target"
	Skip      ResolutionKind = "skip"
)

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	ResolutionKind       ResolutionKind
	ResolvedValue        any
	Reason               string
	RequiresManualReview bool
}

// Strategy resolves one conflict between sourceData and targetData.
type Strategy interface {
	Resolve(sourceData, targetData any, ctx *Context) (*Resolution, error)
}

// Resolver holds a registry of named strategies, keyed by strategy tag, the
// same pattern used for every other pluggable capability in this codebase.
type Resolver struct {
	mu         sync.RWMutex
	strategies map[types.ConflictStrategy]Strategy
}

// New constructs a Resolver with the four built-in strategies registered.
func New() *Resolver {
	r := &Resolver{strategies: make(map[types.ConflictStrategy]Strategy)}
	r.Register(types.StrategySourceWins, sourceWinsStrategy{})
	r.Register(types.StrategyTargetWins, targetWinsStrategy{})
	r.Register(types.StrategyNewerWins, newerWinsStrategy{})
	r.Register(types.StrategyManual, manualStrategy{})
	return r
}

// Register adds or replaces the strategy for tag, allowing callers to plug
// in custom conflict policies beyond the four built-ins.
func (r *Resolver) Register(tag types.ConflictStrategy, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[tag] = s
}

// Resolve applies the named strategy to one conflict.
func (r *Resolver) Resolve(tag types.ConflictStrategy, sourceData, targetData any, ctx *Context) (*Resolution, error) {
	r.mu.RLock()
	s, ok := r.strategies[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewInternal("no resolver registered for strategy %q", tag)
	}
	return s.Resolve(sourceData, targetData, ctx)
}

// DetectConflicts compares source and target JSON-like object values
// key-by-key, recursing into nested objects, and returns every differing or
// mismatched field. Arrays are compared as opaque values (no element-wise
// diffing). Numeric equality is exact.
func DetectConflicts(source, target any) []FieldConflict {
	var conflicts []FieldConflict
	detectConflictsAt("", source, target, &conflicts)
	return conflicts
}

func detectConflictsAt(prefix string, source, target any, out *[]FieldConflict) {
	sourceObj, sourceIsObj := source.(map[string]any)
	targetObj, targetIsObj := target.(map[string]any)

	if !sourceIsObj || !targetIsObj {
		if !valuesEqual(source, target) {
			*out = append(*out, FieldConflict{
				FieldPath:   prefix,
				SourceValue: source,
				TargetValue: target,
				Kind:        classify(source, target),
			})
		}
		return
	}

	for key, sourceValue := range sourceObj {
		path := joinPath(prefix, key)
		targetValue, present := targetObj[key]
		if !present {
			*out = append(*out, FieldConflict{
				FieldPath:   path,
				SourceValue: sourceValue,
				TargetValue: nil,
				Kind:        MissingField,
			})
			continue
		}
		if nestedSource, ok := sourceValue.(map[string]any); ok {
			if nestedTarget, ok := targetValue.(map[string]any); ok {
				detectConflictsAt(path, nestedSource, nestedTarget, out)
				continue
			}
		}
		if !valuesEqual(sourceValue, targetValue) {
			*out = append(*out, FieldConflict{
				FieldPath:   path,
				SourceValue: sourceValue,
				TargetValue: targetValue,
				Kind:        classify(sourceValue, targetValue),
			})
		}
	}

	for key, targetValue := range targetObj {
		if _, present := sourceObj[key]; !present {
			*out = append(*out, FieldConflict{
				FieldPath:   joinPath(prefix, key),
				SourceValue: nil,
				TargetValue: targetValue,
				Kind:        ExtraField,
			})
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func classify(source, target any) ConflictKind {
	if source == nil {
		return MissingField
	}
	if target == nil {
		return ExtraField
	}
	sameType := reflect.TypeOf(source) == reflect.TypeOf(target)
	switch source.(type) {
	case string, float64, int, int64, bool:
		if sameType {
			return ValueDifference
		}
	}
	if sameType {
		return ValueDifference
	}
	return TypeMismatch
}

// Built-in strategies.

type sourceWinsStrategy struct{}

func (sourceWinsStrategy) Resolve(sourceData, _ any, _ *Context) (*Resolution, error) {
	return &Resolution{
		ResolutionKind: UseSource,
		ResolvedValue:  sourceData,
		Reason:         "Source wins strategy applied",
	}, nil
}

type targetWinsStrategy struct{}

func (targetWinsStrategy) Resolve(_ any, targetData any, _ *Context) (*Resolution, error) {
	return &Resolution{
		ResolutionKind: UseTarget,
		ResolvedValue:  targetData,
		Reason:         "Target wins strategy applied",
	}, nil
}

type newerWinsStrategy struct{}

func (newerWinsStrategy) Resolve(sourceData, targetData any, ctx *Context) (*Resolution, error) {
	switch {
	case ctx.SourceTimestamp != nil && ctx.TargetTimestamp != nil:
		if ctx.SourceTimestamp.After(*ctx.TargetTimestamp) {
			return &Resolution{
				ResolutionKind: UseSource,
				ResolvedValue:  sourceData,
				Reason:         fmt.Sprintf("Source is newer (%s > %s)", ctx.SourceTimestamp, ctx.TargetTimestamp),
			}, nil
		}
		// Ties (equal timestamps) fall through here and go to target.
		return &Resolution{
			ResolutionKind: UseTarget,
			ResolvedValue:  targetData,
			Reason:         fmt.Sprintf("Target is newer or equal (%s >= %s)", ctx.TargetTimestamp, ctx.SourceTimestamp),
		}, nil
	case ctx.SourceTimestamp != nil:
		return &Resolution{
			ResolutionKind: UseSource,
			ResolvedValue:  sourceData,
			Reason:         "Source has timestamp, target does not",
		}, nil
	case ctx.TargetTimestamp != nil:
		return &Resolution{
			ResolutionKind: UseTarget,
			ResolvedValue:  targetData,
			Reason:         "Target has timestamp, source does not",
		}, nil
	default:
		return &Resolution{
			ResolutionKind:       UseSource,
			ResolvedValue:        sourceData,
			Reason:               "No timestamps available, defaulting to source",
			RequiresManualReview: true,
		}, nil
	}
}

type manualStrategy struct{}

func (manualStrategy) Resolve(_, _ any, _ *Context) (*Resolution, error) {
	return &Resolution{
		ResolutionKind:       Skip,
		ResolvedValue:        nil,
		Reason:               "Manual resolution required",
		RequiresManualReview: true,
	}, nil
}
