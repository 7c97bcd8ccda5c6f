// Package types defines the shared data model for sync pairs, operations,
// records, export jobs, and county configuration.
package types

import "time"

// OperationState is the lifecycle state of a SyncOperation or GisExport.
type OperationState string

const (
	StatePending   OperationState = "pending"
	StateRunning   OperationState = "running"
	StateCompleted OperationState = "completed"
	StateFailed    OperationState = "failed"
	StateCanceled  OperationState = "canceled"
)

// Terminal reports whether s is an absorbing state.
func (s OperationState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// ConflictStrategy names a conflict resolution policy.
type ConflictStrategy string

const (
	StrategySourceWins ConflictStrategy = "source_wins"
	StrategyTargetWins ConflictStrategy = "target_wins"
	StrategyNewerWins  ConflictStrategy = "newer_wins"
	StrategyManual     ConflictStrategy = "manual"
)

var validConflictStrategies = map[ConflictStrategy]bool{
	StrategySourceWins: true,
	StrategyTargetWins: true,
	StrategyNewerWins:  true,
	StrategyManual:     true,
}

// Valid reports whether s is one of the known built-in strategies.
func (s ConflictStrategy) Valid() bool { return validConflictStrategies[s] }

// TransformationKind names a built-in field transformation.
type TransformationKind string

const (
	TransformUppercase    TransformationKind = "uppercase"
	TransformLowercase    TransformationKind = "lowercase"
	TransformConcat       TransformationKind = "concat"
	TransformSplitAddress TransformationKind = "split_address"
)

// FieldMapping projects one source field onto one target field.
type FieldMapping struct {
	SourcePath          string             `json:"source_path"`
	TargetPath          string             `json:"target_path"`
	TransformationKind  TransformationKind `json:"transformation_kind,omitempty"`
	TransformationParam map[string]any     `json:"transformation_params,omitempty"`
}

// SyncPair is the declarative definition of one integration.
type SyncPair struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	CountyID             string           `json:"county_id"`
	SourceSystem         string           `json:"source_system"`
	SourceConfig         map[string]any   `json:"source_config"`
	TargetSystem         string           `json:"target_system"`
	TargetConfig         map[string]any   `json:"target_config"`
	FieldMappings        []FieldMapping   `json:"field_mappings"`
	SyncIntervalMinutes  *int             `json:"sync_interval_minutes,omitempty"`
	SyncConflictStrategy ConflictStrategy `json:"sync_conflict_strategy"`
	IsActive             bool             `json:"is_active"`
	LastSyncTime         *time.Time       `json:"last_sync_time,omitempty"`
	LastSyncStatus       OperationState   `json:"last_sync_status,omitempty"`
}

// Validate checks the invariants SyncPair must satisfy before use.
func (p *SyncPair) Validate() error {
	if p.SourceSystem == "" {
		return errRequired("source_system")
	}
	if p.TargetSystem == "" {
		return errRequired("target_system")
	}
	if len(p.FieldMappings) == 0 {
		return errRequired("field_mappings")
	}
	if !p.SyncConflictStrategy.Valid() {
		return errInvalid("sync_conflict_strategy", string(p.SyncConflictStrategy))
	}
	return nil
}

// LogEvent is one append-only entry in an operation's execution log.
type LogEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// SyncOperation is one execution of a SyncPair.
type SyncOperation struct {
	ID               string         `json:"id"`
	SyncPairID       string         `json:"sync_pair_id"`
	Initiator        string         `json:"initiator"`
	State            OperationState `json:"state"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	TotalRecords     int            `json:"total_records"`
	RecordsProcessed int            `json:"records_processed"`
	RecordsSucceeded int            `json:"records_succeeded"`
	RecordsFailed    int            `json:"records_failed"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	ExecutionLogs    []LogEvent     `json:"execution_logs"`
	CustomParams     map[string]any `json:"custom_params,omitempty"`
	DurationSeconds  float64        `json:"duration_seconds,omitempty"`
	AvgRecordMs      float64        `json:"avg_record_processing_ms,omitempty"`
}

// AppendLog appends an event to the operation's execution log.
func (o *SyncOperation) AppendLog(kind, message string, fields map[string]any) {
	o.ExecutionLogs = append(o.ExecutionLogs, LogEvent{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
		Fields:    fields,
	})
}

// ChangeType classifies a SyncRecord's relationship to the target.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
)

// RecordSyncStatus is the per-record outcome of a sync operation.
type RecordSyncStatus string

const (
	RecordSynced   RecordSyncStatus = "synced"
	RecordFailed   RecordSyncStatus = "failed"
	RecordConflict RecordSyncStatus = "conflict"
)

// FieldDiff is one differing field path between source and target.
type FieldDiff struct {
	FieldPath    string `json:"field_path"`
	SourceValue  any    `json:"source_value"`
	TargetValue  any    `json:"target_value"`
}

// SyncRecord is the per-item outcome of one operation's diff/resolve/load pass.
type SyncRecord struct {
	ID           string           `json:"id"`
	OperationID  string           `json:"operation_id"`
	EntityID     string           `json:"entity_id"`
	EntityType   string           `json:"entity_type"`
	ChangeType   ChangeType       `json:"change_type"`
	SourceData   map[string]any   `json:"source_data,omitempty"`
	TargetData   map[string]any   `json:"target_data,omitempty"`
	SyncStatus   RecordSyncStatus `json:"sync_status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	DiffDetails  []FieldDiff      `json:"diff_details,omitempty"`
}

func errRequired(field string) error  { return &validationError{field, "is required"} }
func errInvalid(field, val string) error {
	return &validationError{field, "has invalid value " + val}
}

type validationError struct {
	field, reason string
}

func (e *validationError) Error() string { return e.field + " " + e.reason }
