// Package store defines the Job Store contract: durable persistence and
// query of sync pairs, sync operations, sync records, and GIS exports. Two
// backends are provided: an in-memory store (memstore.go) for tests and
// single-node operation, and a MySQL-protocol-backed store (sqlstore.go) for
// durability across restarts. Backends register themselves in a factory
// registry keyed by name, the same pluggable-backend pattern used for
// connectors and format handlers.
package store

import (
	"context"
	"time"

	"github.com/countygov/terrasync/internal/types"
)

// OperationFilter narrows a list_operations query.
type OperationFilter struct {
	SyncPairID string
	State      types.OperationState
}

// ExportFilter narrows a list_exports query.
type ExportFilter struct {
	CountyID string
	State    types.OperationState
}

// Page bounds a list query. The store treats a Page below 1 as 1, a PerPage
// below 1 as 50, and caps PerPage at 1000.
type Page struct {
	Page    int
	PerPage int
}

// Normalize applies the documented defaults and bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 50
	}
	if p.PerPage > 1000 {
		p.PerPage = 1000
	}
	return p
}

// OperationPatch is a partial update to a SyncOperation. Nil fields are left
// unchanged. NewLogs are appended, never replacing existing entries.
type OperationPatch struct {
	State            *types.OperationState
	EndTime          *time.Time
	TotalRecords      *int
	RecordsProcessed  *int
	RecordsSucceeded  *int
	RecordsFailed     *int
	ErrorMessage      *string
	DurationSeconds   *float64
	AvgRecordMs       *float64
	NewLogs           []types.LogEvent
}

// ExportPatch is a partial update to a GisExport.
type ExportPatch struct {
	State           *types.OperationState
	ProgressPercent *int
	ResultURL       *string
	FileSizeBytes   *int64
	ErrorMessage    *string
}

// Store is the Job Store contract every backend implements.
type Store interface {
	// Sync pairs.
	GetSyncPair(ctx context.Context, id string) (*types.SyncPair, error)
	PutSyncPair(ctx context.Context, pair *types.SyncPair) error
	DueSyncPairs(ctx context.Context, now time.Time) ([]*types.SyncPair, error)
	MarkLastSync(ctx context.Context, pairID string, ts time.Time, status types.OperationState) error

	// Sync operations.
	CreateOperation(ctx context.Context, op *types.SyncOperation) error
	UpdateOperationStatus(ctx context.Context, id string, patch OperationPatch) error
	GetOperation(ctx context.Context, id string) (*types.SyncOperation, error)
	ListOperations(ctx context.Context, filter OperationFilter, page Page) ([]*types.SyncOperation, error)
	DeleteOperationsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Sync records.
	PutRecord(ctx context.Context, rec *types.SyncRecord) error
	ListRecords(ctx context.Context, operationID string, page Page) ([]*types.SyncRecord, error)
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// GIS exports.
	CreateExport(ctx context.Context, job *types.GisExport) error
	UpdateExportStatus(ctx context.Context, id string, patch ExportPatch) error
	GetExport(ctx context.Context, id string) (*types.GisExport, error)
	ListExports(ctx context.Context, filter ExportFilter, page Page) ([]*types.GisExport, error)
}
