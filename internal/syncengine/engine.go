// Package syncengine orchestrates one sync pair's extract → transform →
// diff → resolve → load pipeline as a background task, following the same
// "spawn one task, own the id, release on every exit path" shape the gate
// and registry packages use for their own scoped resource handles.
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/concurrency"
	"github.com/countygov/terrasync/internal/conflict"
	"github.com/countygov/terrasync/internal/connector"
	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/telemetry"
	"github.com/countygov/terrasync/internal/types"
)

// BatchSize is how often counters are flushed to the Job Store during a run.
const BatchSize = 20

// Engine drives sync operations for every registered pair.
type Engine struct {
	store       store.Store
	gate        *concurrency.Gate
	cancels     *concurrency.CancellationRegistry
	resolver    *conflict.Resolver
	syncTimeout time.Duration
	logger      *slog.Logger

	// onRecordProcessed, when set, is invoked after each diffed record is
	// processed in run's main loop. It exists so tests can deterministically
	// request cancellation partway through a run instead of racing a sleep
	// against an in-memory loop.
	onRecordProcessed func(opID string, index int)
}

// Config controls Engine construction.
type Config struct {
	Store          store.Store
	MaxConcurrent  int
	SyncTimeout    time.Duration
	Resolver       *conflict.Resolver
	Logger         *slog.Logger
}

// New constructs a sync Engine.
func New(cfg Config) *Engine {
	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = conflict.New()
	}
	return &Engine{
		store:       cfg.Store,
		gate:        concurrency.New(cfg.MaxConcurrent),
		cancels:     concurrency.NewCancellationRegistry(),
		resolver:    resolver,
		syncTimeout: timeout,
		logger:      logger,
	}
}

// StartOperation validates pair, creates a pending operation, and launches
// its background pipeline, returning the operation id immediately.
func (e *Engine) StartOperation(ctx context.Context, pairID, initiator string, customParams map[string]any) (string, error) {
	pair, err := e.store.GetSyncPair(ctx, pairID)
	if err != nil {
		return "", err
	}
	if !pair.IsActive {
		return "", apperrors.NewInvalidInput("sync pair %q is not active", pairID)
	}

	if err := e.gate.TryExclusive(pairID); err != nil {
		return "", err
	}

	id := uuid.NewString()
	op := &types.SyncOperation{
		ID:           id,
		SyncPairID:   pairID,
		Initiator:    initiator,
		State:        types.StatePending,
		StartTime:    time.Now().UTC(),
		CustomParams: customParams,
	}
	op.AppendLog("created", "operation created", nil)

	if err := e.store.CreateOperation(ctx, op); err != nil {
		e.gate.Unlock(pairID)
		return "", err
	}

	e.cancels.MarkActive(id)
	go e.run(context.Background(), pair, op)

	return id, nil
}

// CancelOperation requests cancellation of id.
func (e *Engine) CancelOperation(id string) error {
	if !e.cancels.RequestCancellation(id) {
		return apperrors.NewNotFound("sync operation %q", id)
	}
	return nil
}

// GetOperationStatus returns the current snapshot of id.
func (e *Engine) GetOperationStatus(ctx context.Context, id string) (*types.SyncOperation, error) {
	return e.store.GetOperation(ctx, id)
}

// GetActiveOperations returns the ids currently owned by a running task.
func (e *Engine) GetActiveOperations() []string {
	return e.cancels.ActiveIDs()
}

// RecoverOnStartup transitions any operation left in "running" with no live
// in-memory handle to "failed", the recovery sweep required after a process
// restart interrupts work mid-flight.
func (e *Engine) RecoverOnStartup(ctx context.Context) error {
	ops, err := e.store.ListOperations(ctx, store.OperationFilter{State: types.StateRunning}, store.Page{Page: 1, PerPage: 1000})
	if err != nil {
		return err
	}
	for _, op := range ops {
		if e.cancels.IsActive(op.ID) {
			continue
		}
		state := types.StateFailed
		end := time.Now().UTC()
		msg := "engine restart"
		if err := e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{
			State:        &state,
			EndTime:      &end,
			ErrorMessage: &msg,
			NewLogs: []types.LogEvent{{
				Timestamp: end, Kind: "failed", Message: msg,
			}},
		}); err != nil {
			e.logger.Error("recovery sweep failed to mark operation failed", "operation_id", op.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) run(parentCtx context.Context, pair *types.SyncPair, op *types.SyncOperation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sync operation panicked", "operation_id", op.ID, "panic", r)
			e.failOperation(parentCtx, op.ID, fmt.Sprintf("panic: %v", r))
		}
		e.cancels.RemoveActive(op.ID)
		e.gate.Unlock(pair.ID)
	}()

	ctx, cancel := context.WithTimeout(parentCtx, e.syncTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "syncengine.run")
	defer func() { telemetry.EndSpan(span, nil) }()

	if err := e.gate.Acquire(ctx); err != nil {
		e.failOperation(ctx, op.ID, "timed out waiting for a sync permit")
		return
	}
	defer e.gate.Release()

	telemetry.SyncOperationStarted(ctx)
	started := time.Now()
	succeeded := false
	defer func() { telemetry.SyncOperationFinished(ctx, succeeded, time.Since(started)) }()

	running := types.StateRunning
	_ = e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{
		State: &running,
		NewLogs: []types.LogEvent{{Timestamp: time.Now().UTC(), Kind: "operation_started", Message: "operation started"}},
	})

	sourceConn, err := connector.GetSource(pair.SourceSystem)
	if err != nil {
		e.failOperation(ctx, op.ID, err.Error())
		return
	}
	targetConn, err := connector.GetTarget(pair.TargetSystem)
	if err != nil {
		e.failOperation(ctx, op.ID, err.Error())
		return
	}
	// targetConn also usable as a Source for the diff comparison when it
	// implements one; reference connectors all do.
	targetSource, ok := targetConn.(connector.Source)
	if !ok {
		e.failOperation(ctx, op.ID, fmt.Sprintf("target system %q cannot be read for diffing", pair.TargetSystem))
		return
	}

	var sourceRecords, targetRecords []map[string]any
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		sourceRecords, err = sourceConn.Extract(egCtx, pair.SourceConfig)
		return err
	})
	eg.Go(func() error {
		var err error
		targetRecords, err = targetSource.Extract(egCtx, pair.TargetConfig)
		return err
	})
	if err := eg.Wait(); err != nil {
		e.failOperation(ctx, op.ID, fmt.Sprintf("extract failed: %v", err))
		return
	}

	_ = e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{
		NewLogs: []types.LogEvent{{Timestamp: time.Now().UTC(), Kind: "data_fetch_completed", Message: fmt.Sprintf("fetched %d source, %d target records", len(sourceRecords), len(targetRecords))}},
	})

	transformed := make([]map[string]any, 0, len(sourceRecords))
	for _, src := range sourceRecords {
		out, err := transformRecord(src, pair.FieldMappings)
		if err != nil {
			e.failOperation(ctx, op.ID, fmt.Sprintf("transform failed: %v", err))
			return
		}
		transformed = append(transformed, out)
	}

	idField := entityIDField(pair.SourceConfig)
	diffs := diffRecords(transformed, targetRecords, idField)

	total := len(diffs)
	_ = e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{TotalRecords: &total})

	var toLoad []map[string]any
	var toLoadRecords []*types.SyncRecord
	succeededCount, failedCount, processed := 0, 0, 0

	for i, d := range diffs {
		if e.cancels.IsCancellationRequested(op.ID) {
			e.cancelOperationNow(ctx, op.ID, processed)
			return
		}

		rec := &types.SyncRecord{
			ID:          uuid.NewString(),
			OperationID: op.ID,
			EntityID:    d.entityID,
			EntityType:  "record",
			ChangeType:  d.changeType,
			SourceData:  d.sourceData,
			TargetData:  d.targetData,
		}

		var loadPayload map[string]any
		needsLoad := false

		switch d.changeType {
		case types.ChangeUnchanged:
			rec.SyncStatus = types.RecordSynced
		case types.ChangeModified:
			fieldConflicts := conflict.DetectConflicts(any(d.sourceData), any(d.targetData))
			resolved := copyRecord(d.sourceData)
			needsReview := false
			for _, fc := range fieldConflicts {
				resolution, err := e.resolver.Resolve(pair.SyncConflictStrategy, fc.SourceValue, fc.TargetValue, &conflict.Context{
					PairID:      pair.ID,
					OperationID: op.ID,
					FieldPath:   fc.FieldPath,
				})
				if err != nil {
					e.failOperation(ctx, op.ID, fmt.Sprintf("conflict resolution failed: %v", err))
					return
				}
				if resolution.ResolutionKind != conflict.Skip {
					setNestedValue(resolved, fc.FieldPath, resolution.ResolvedValue)
				}
				needsReview = needsReview || resolution.RequiresManualReview
				rec.DiffDetails = append(rec.DiffDetails, types.FieldDiff{
					FieldPath: fc.FieldPath, SourceValue: fc.SourceValue, TargetValue: fc.TargetValue,
				})
			}
			if needsReview {
				rec.SyncStatus = types.RecordConflict
			}
			loadPayload, needsLoad = resolved, true
		case types.ChangeAdded:
			loadPayload, needsLoad = d.sourceData, true
		case types.ChangeDeleted:
			rec.SyncStatus = types.RecordSynced
		}

		if needsLoad {
			toLoad = append(toLoad, loadPayload)
			toLoadRecords = append(toLoadRecords, rec)
		} else {
			_ = e.store.PutRecord(ctx, rec)
		}

		processed++
		if e.onRecordProcessed != nil {
			e.onRecordProcessed(op.ID, i)
		}
		if processed%BatchSize == 0 || i == len(diffs)-1 {
			_ = e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{RecordsProcessed: &processed})
		}
	}

	loadResult, err := targetConn.Load(ctx, toLoad, pair.TargetConfig)
	if err != nil {
		e.failOperation(ctx, op.ID, fmt.Sprintf("load failed: %v", err))
		return
	}

	errIdx := make(map[int]string, len(loadResult.Errors))
	for _, msg := range loadResult.Errors {
		errIdx[extractRecordIndex(msg)] = msg
	}
	for i, rec := range toLoadRecords {
		if msg, failed := errIdx[i]; failed {
			rec.SyncStatus = types.RecordFailed
			rec.ErrorMessage = msg
			failedCount++
		} else if rec.SyncStatus == "" {
			rec.SyncStatus = types.RecordSynced
		}
		_ = e.store.PutRecord(ctx, rec)
	}
	succeededCount = processed - failedCount

	endTime := time.Now().UTC()
	duration := endTime.Sub(op.StartTime).Seconds()
	avgMs := 0.0
	if processed > 0 {
		avgMs = duration * 1000 / float64(processed)
	}
	completed := types.StateCompleted
	_ = e.store.UpdateOperationStatus(ctx, op.ID, store.OperationPatch{
		State:            &completed,
		EndTime:          &endTime,
		RecordsProcessed: &processed,
		RecordsSucceeded: &succeededCount,
		RecordsFailed:    &failedCount,
		DurationSeconds:  &duration,
		AvgRecordMs:      &avgMs,
		NewLogs: []types.LogEvent{{Timestamp: endTime, Kind: "completed", Message: "operation completed"}},
	})
	_ = e.store.MarkLastSync(ctx, pair.ID, endTime, types.StateCompleted)
	succeeded = true
}

func (e *Engine) failOperation(ctx context.Context, id, reason string) {
	state := types.StateFailed
	end := time.Now().UTC()
	_ = e.store.UpdateOperationStatus(ctx, id, store.OperationPatch{
		State:        &state,
		EndTime:      &end,
		ErrorMessage: &reason,
		NewLogs: []types.LogEvent{{Timestamp: end, Kind: "failed", Message: reason}},
	})
}

func (e *Engine) cancelOperationNow(ctx context.Context, id string, processed int) {
	state := types.StateCanceled
	end := time.Now().UTC()
	reason := "Operation was cancelled"
	_ = e.store.UpdateOperationStatus(ctx, id, store.OperationPatch{
		State:            &state,
		EndTime:          &end,
		RecordsProcessed: &processed,
		ErrorMessage:     &reason,
		NewLogs: []types.LogEvent{{Timestamp: end, Kind: "canceled", Message: reason}},
	})
}

// extractRecordIndex pulls the leading "record N: ..." index out of a
// connector-reported load error so it can be correlated back to the
// SyncRecord awaiting persistence at that position. Falls back to -1 (no
// match) when a connector reports an error without that prefix.
func extractRecordIndex(msg string) int {
	const prefix = "record "
	if !strings.HasPrefix(msg, prefix) {
		return -1
	}
	rest := msg[len(prefix):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return -1
	}
	n, err := strconv.Atoi(rest[:colon])
	if err != nil {
		return -1
	}
	return n
}
