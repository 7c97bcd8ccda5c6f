package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/types"
)

// MemStore is an in-memory Store guarded by a single RWMutex, the default
// backend for tests and single-process operation.
type MemStore struct {
	mu sync.RWMutex

	pairs      map[string]*types.SyncPair
	operations map[string]*types.SyncOperation
	records    map[string][]*types.SyncRecord // keyed by operation id
	exports    map[string]*types.GisExport
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		pairs:      make(map[string]*types.SyncPair),
		operations: make(map[string]*types.SyncOperation),
		records:    make(map[string][]*types.SyncRecord),
		exports:    make(map[string]*types.GisExport),
	}
}

func (s *MemStore) GetSyncPair(_ context.Context, id string) (*types.SyncPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return nil, apperrors.NewNotFound("sync pair %q", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) PutSyncPair(_ context.Context, pair *types.SyncPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pair
	s.pairs[pair.ID] = &cp
	return nil
}

func (s *MemStore) DueSyncPairs(_ context.Context, now time.Time) ([]*types.SyncPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*types.SyncPair
	for _, p := range s.pairs {
		if !p.IsActive || p.SyncIntervalMinutes == nil {
			continue
		}
		interval := time.Duration(*p.SyncIntervalMinutes) * time.Minute
		if p.LastSyncTime == nil || !p.LastSyncTime.Add(interval).After(now) {
			cp := *p
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ti, tj := due[i].LastSyncTime, due[j].LastSyncTime
		if ti == nil {
			return true
		}
		if tj == nil {
			return false
		}
		return ti.Before(*tj)
	})
	return due, nil
}

func (s *MemStore) MarkLastSync(_ context.Context, pairID string, ts time.Time, status types.OperationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[pairID]
	if !ok {
		return apperrors.NewNotFound("sync pair %q", pairID)
	}
	if p.LastSyncTime != nil && ts.Before(*p.LastSyncTime) {
		return apperrors.NewInvalidInput("last_sync_time must advance monotonically for pair %q", pairID)
	}
	p.LastSyncTime = &ts
	p.LastSyncStatus = status
	return nil
}

func (s *MemStore) CreateOperation(_ context.Context, op *types.SyncOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.operations[op.ID]; exists {
		return apperrors.NewConflict("sync operation %q already exists", op.ID)
	}
	cp := *op
	s.operations[op.ID] = &cp
	return nil
}

func (s *MemStore) UpdateOperationStatus(_ context.Context, id string, patch OperationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[id]
	if !ok {
		return apperrors.NewNotFound("sync operation %q", id)
	}
	if op.State.Terminal() && patch.State != nil && *patch.State != op.State {
		return apperrors.NewInvalidInput("operation %q is already terminal (%s)", id, op.State)
	}
	if patch.State != nil {
		op.State = *patch.State
	}
	if patch.EndTime != nil {
		op.EndTime = patch.EndTime
	}
	if patch.TotalRecords != nil {
		op.TotalRecords = *patch.TotalRecords
	}
	if patch.RecordsProcessed != nil {
		op.RecordsProcessed = *patch.RecordsProcessed
	}
	if patch.RecordsSucceeded != nil {
		op.RecordsSucceeded = *patch.RecordsSucceeded
	}
	if patch.RecordsFailed != nil {
		op.RecordsFailed = *patch.RecordsFailed
	}
	if patch.ErrorMessage != nil {
		op.ErrorMessage = *patch.ErrorMessage
	}
	if patch.DurationSeconds != nil {
		op.DurationSeconds = *patch.DurationSeconds
	}
	if patch.AvgRecordMs != nil {
		op.AvgRecordMs = *patch.AvgRecordMs
	}
	op.ExecutionLogs = append(op.ExecutionLogs, patch.NewLogs...)
	return nil
}

func (s *MemStore) GetOperation(_ context.Context, id string) (*types.SyncOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operations[id]
	if !ok {
		return nil, apperrors.NewNotFound("sync operation %q", id)
	}
	cp := *op
	cp.ExecutionLogs = append([]types.LogEvent(nil), op.ExecutionLogs...)
	return &cp, nil
}

func (s *MemStore) ListOperations(_ context.Context, filter OperationFilter, page Page) ([]*types.SyncOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page = page.Normalize()

	var matched []*types.SyncOperation
	for _, op := range s.operations {
		if filter.SyncPairID != "" && op.SyncPairID != filter.SyncPairID {
			continue
		}
		if filter.State != "" && op.State != filter.State {
			continue
		}
		cp := *op
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })
	return paginate(matched, page), nil
}

func (s *MemStore) DeleteOperationsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, op := range s.operations {
		if op.State.Terminal() && op.StartTime.Before(cutoff) {
			delete(s.operations, id)
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemStore) PutRecord(_ context.Context, rec *types.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.OperationID] = append(s.records[rec.OperationID], &cp)
	return nil
}

func (s *MemStore) ListRecords(_ context.Context, operationID string, page Page) ([]*types.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page = page.Normalize()
	recs := s.records[operationID]
	out := make([]*types.SyncRecord, len(recs))
	copy(out, recs)
	return paginate(out, page), nil
}

func (s *MemStore) DeleteRecordsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for opID, op := range s.operations {
		if op.EndTime != nil && op.EndTime.Before(cutoff) {
			n += len(s.records[opID])
			delete(s.records, opID)
		}
	}
	return n, nil
}

func (s *MemStore) CreateExport(_ context.Context, job *types.GisExport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.exports[job.ID]; exists {
		return apperrors.NewConflict("export %q already exists", job.ID)
	}
	cp := *job
	s.exports[job.ID] = &cp
	return nil
}

func (s *MemStore) UpdateExportStatus(_ context.Context, id string, patch ExportPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.exports[id]
	if !ok {
		return apperrors.NewNotFound("export %q", id)
	}
	if job.State.Terminal() && patch.State != nil && *patch.State != job.State {
		return apperrors.NewInvalidInput("export %q is already terminal (%s)", id, job.State)
	}
	if patch.State != nil {
		job.State = *patch.State
	}
	if patch.ProgressPercent != nil {
		job.ProgressPercent = *patch.ProgressPercent
	}
	if patch.ResultURL != nil {
		job.ResultURL = *patch.ResultURL
	}
	if patch.FileSizeBytes != nil {
		job.FileSizeBytes = *patch.FileSizeBytes
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	return nil
}

func (s *MemStore) GetExport(_ context.Context, id string) (*types.GisExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.exports[id]
	if !ok {
		return nil, apperrors.NewNotFound("export %q", id)
	}
	cp := *job
	return &cp, nil
}

func (s *MemStore) ListExports(_ context.Context, filter ExportFilter, page Page) ([]*types.GisExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page = page.Normalize()

	var matched []*types.GisExport
	for _, job := range s.exports {
		if filter.CountyID != "" && job.CountyID != filter.CountyID {
			continue
		}
		if filter.State != "" && job.State != filter.State {
			continue
		}
		cp := *job
		matched = append(matched, &cp)
	}
	return paginate(matched, page), nil
}

func paginate[T any](items []T, page Page) []T {
	start := (page.Page - 1) * page.PerPage
	if start >= len(items) {
		return nil
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
