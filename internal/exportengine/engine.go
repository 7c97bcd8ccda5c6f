// Package exportengine orchestrates one GIS export request's validate →
// extract layers → write artifact → publish pipeline, mirroring syncengine's
// "spawn one task, own the id, release on every exit path" background-task
// shape.
package exportengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/countygov/terrasync/internal/apperrors"
	"github.com/countygov/terrasync/internal/concurrency"
	"github.com/countygov/terrasync/internal/countyconfig"
	"github.com/countygov/terrasync/internal/exportformat"
	"github.com/countygov/terrasync/internal/layersource"
	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/telemetry"
	"github.com/countygov/terrasync/internal/types"
)

// CreateExportRequest is the caller-supplied shape of a new export job.
type CreateExportRequest struct {
	CountyID       string
	ExportFormat   types.ExportFormat
	Layers         []string
	AreaOfInterest map[string]any
	Parameters     map[string]any
}

// Engine runs the export pipeline for one county/format/layer-set request at
// a time, bounded by its own concurrency gate (separate from the sync
// engine's, per "max_concurrent_exports").
type Engine struct {
	store        store.Store
	gate         *concurrency.Gate
	cancels      *concurrency.CancellationRegistry
	counties     *countyconfig.Cache
	timeout      time.Duration
	exportsDir   string
	maxSizeBytes int64
	logger       *slog.Logger
}

// Config wires an Engine's dependencies.
type Config struct {
	Store           store.Store
	Gate            *concurrency.Gate
	Cancellations   *concurrency.CancellationRegistry
	Counties        *countyconfig.Cache
	ExportTimeout   time.Duration
	ExportsDir      string
	MaxExportSizeMB int
	Logger          *slog.Logger
}

// New constructs an Engine from cfg, applying documented defaults for any
// zero-valued field.
func New(cfg Config) *Engine {
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 30 * time.Minute
	}
	if cfg.ExportsDir == "" {
		cfg.ExportsDir = "./data/exports"
	}
	if cfg.MaxExportSizeMB <= 0 {
		cfg.MaxExportSizeMB = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:        cfg.Store,
		gate:         cfg.Gate,
		cancels:      cfg.Cancellations,
		counties:     cfg.Counties,
		timeout:      cfg.ExportTimeout,
		exportsDir:   cfg.ExportsDir,
		maxSizeBytes: int64(cfg.MaxExportSizeMB) * 1024 * 1024,
		logger:       cfg.Logger,
	}
}

// StartExport validates request, creates a pending GisExport job, and
// launches its background pipeline, returning the job id immediately.
func (e *Engine) StartExport(ctx context.Context, req CreateExportRequest, initiator string) (string, error) {
	county, err := e.counties.Get(ctx, req.CountyID)
	if err != nil {
		return "", err
	}
	if err := validateExportRequest(req, county); err != nil {
		return "", err
	}

	id := uuid.NewString()
	job := &types.GisExport{
		ID:              id,
		CountyID:        req.CountyID,
		ExportFormat:    req.ExportFormat,
		Layers:          req.Layers,
		AreaOfInterest:  req.AreaOfInterest,
		Parameters:      countyconfig.ApplyDefaults(req.Parameters, county),
		CreatedBy:       initiator,
		State:           types.StatePending,
		ProgressPercent: 0,
	}
	if err := e.store.CreateExport(ctx, job); err != nil {
		return "", err
	}

	e.cancels.MarkActive(id)
	go e.run(context.Background(), job, county)

	return id, nil
}

// CancelExport requests cancellation of id.
func (e *Engine) CancelExport(id string) error {
	if !e.cancels.RequestCancellation(id) {
		return apperrors.NewNotFound("export %q", id)
	}
	return nil
}

// GetExportStatus returns the current snapshot of id.
func (e *Engine) GetExportStatus(ctx context.Context, id string) (*types.GisExport, error) {
	return e.store.GetExport(ctx, id)
}

// GetActiveExports returns the ids currently owned by a running task.
func (e *Engine) GetActiveExports() []string {
	return e.cancels.ActiveIDs()
}

// RecoverOnStartup transitions any export left in "running" with no live
// in-memory handle to "failed", matching the sync engine's restart recovery.
func (e *Engine) RecoverOnStartup(ctx context.Context) error {
	jobs, err := e.store.ListExports(ctx, store.ExportFilter{State: types.StateRunning}, store.Page{Page: 1, PerPage: 1000})
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if e.cancels.IsActive(job.ID) {
			continue
		}
		failed := types.StateFailed
		reason := "engine restart"
		_ = e.store.UpdateExportStatus(ctx, job.ID, store.ExportPatch{State: &failed, ErrorMessage: &reason})
	}
	return nil
}

func (e *Engine) run(parentCtx context.Context, job *types.GisExport, county *types.CountyConfiguration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("export panicked", "export_id", job.ID, "panic", r)
			e.failExport(parentCtx, job.ID, fmt.Sprintf("panic: %v", r))
		}
		e.cancels.RemoveActive(job.ID)
	}()

	ctx, cancel := context.WithTimeout(parentCtx, e.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "exportengine.run")
	defer func() { telemetry.EndSpan(span, nil) }()

	if err := e.gate.Acquire(ctx); err != nil {
		e.failExport(ctx, job.ID, "timed out waiting for an export permit")
		return
	}
	defer e.gate.Release()

	telemetry.ExportStarted(ctx)
	started := time.Now()
	succeeded := false
	defer func() { telemetry.ExportFinished(ctx, succeeded, time.Since(started)) }()

	if e.setProgress(ctx, job.ID, types.StateRunning, 10) != nil {
		return
	}

	if e.setProgress(ctx, job.ID, types.StateRunning, 20) != nil {
		return
	}

	provider, err := layersource.Get()
	if err != nil {
		e.failExport(ctx, job.ID, err.Error())
		return
	}

	byID := make(map[string]types.LayerDefinition, len(county.AvailableLayers))
	for _, l := range county.AvailableLayers {
		byID[l.ID] = l
	}

	layers := make([]exportformat.Layer, 0, len(job.Layers))
	for i, layerID := range job.Layers {
		if e.cancels.IsCancellationRequested(job.ID) {
			e.cancelExportNow(ctx, job.ID)
			return
		}

		def := byID[layerID]
		features, err := provider.Features(ctx, job.CountyID, def, job.AreaOfInterest)
		if err != nil {
			e.failExport(ctx, job.ID, fmt.Sprintf("extract layer %q: %v", layerID, err))
			return
		}
		layers = append(layers, exportformat.Layer{Name: layerID, Features: features})

		progress := 20 + (40*(i+1))/len(job.Layers)
		if progress > 60 {
			progress = 60
		}
		if e.setProgress(ctx, job.ID, types.StateRunning, progress) != nil {
			return
		}
	}

	if e.cancels.IsCancellationRequested(job.ID) {
		e.cancelExportNow(ctx, job.ID)
		return
	}

	handler, err := exportformat.Get(job.ExportFormat)
	if err != nil {
		e.failExport(ctx, job.ID, err.Error())
		return
	}

	if err := os.MkdirAll(e.exportsDir, 0o755); err != nil {
		e.failExport(ctx, job.ID, fmt.Sprintf("prepare exports directory: %v", err))
		return
	}
	outputPath := e.artifactPath(job.ID, handler.FileExtension())

	if err := handler.Generate(layers, outputPath, job.Parameters, county); err != nil {
		_ = os.Remove(outputPath)
		e.failExport(ctx, job.ID, fmt.Sprintf("generate artifact: %v", err))
		return
	}

	if e.setProgress(ctx, job.ID, types.StateRunning, 90) != nil {
		return
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		e.failExport(ctx, job.ID, fmt.Sprintf("stat artifact: %v", err))
		return
	}

	if e.maxSizeBytes > 0 && info.Size() > e.maxSizeBytes {
		_ = os.Remove(outputPath)
		e.failExport(ctx, job.ID, fmt.Sprintf("artifact size %d bytes exceeds max_export_size_mb limit of %d bytes", info.Size(), e.maxSizeBytes))
		return
	}

	resultURL := e.resultURL(job.ID, handler.FileExtension())
	completed := types.StateCompleted
	progress100 := 100
	size := info.Size()
	_ = e.store.UpdateExportStatus(ctx, job.ID, store.ExportPatch{
		State:           &completed,
		ProgressPercent: &progress100,
		ResultURL:       &resultURL,
		FileSizeBytes:   &size,
	})

	succeeded = true
}

func (e *Engine) setProgress(ctx context.Context, id string, state types.OperationState, percent int) error {
	err := e.store.UpdateExportStatus(ctx, id, store.ExportPatch{State: &state, ProgressPercent: &percent})
	if err != nil {
		e.failExport(ctx, id, fmt.Sprintf("persist progress: %v", err))
	}
	return err
}

func (e *Engine) failExport(ctx context.Context, id, reason string) {
	state := types.StateFailed
	_ = e.store.UpdateExportStatus(ctx, id, store.ExportPatch{State: &state, ErrorMessage: &reason})
}

func (e *Engine) cancelExportNow(ctx context.Context, id string) {
	_ = os.Remove(e.artifactPathForAnyFormat(ctx, id))
	state := types.StateCanceled
	reason := "export was cancelled"
	_ = e.store.UpdateExportStatus(ctx, id, store.ExportPatch{State: &state, ErrorMessage: &reason})
}

// artifactPathForAnyFormat best-effort locates a partial artifact to delete
// on cancellation; the export's format is read back from the store since the
// cancellation poll points fire before the format handler produces its own
// reference to the path.
func (e *Engine) artifactPathForAnyFormat(ctx context.Context, id string) string {
	job, err := e.store.GetExport(ctx, id)
	if err != nil {
		return ""
	}
	handler, err := exportformat.Get(job.ExportFormat)
	if err != nil {
		return ""
	}
	return e.artifactPath(id, handler.FileExtension())
}

func (e *Engine) artifactPath(id, ext string) string {
	return filepath.Join(e.exportsDir, fmt.Sprintf("export_%s.%s", id, ext))
}

func (e *Engine) resultURL(id, ext string) string {
	return fmt.Sprintf("/exports/export_%s.%s", id, ext)
}
