package exportengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countygov/terrasync/internal/concurrency"
	"github.com/countygov/terrasync/internal/countyconfig"
	"github.com/countygov/terrasync/internal/exportformat"
	"github.com/countygov/terrasync/internal/layersource"
	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/types"
)

type fixedLoader struct {
	cfg *types.CountyConfiguration
}

func (f fixedLoader) Load(context.Context, string) (*types.CountyConfiguration, bool, error) {
	return f.cfg, true, nil
}

func testCounty() *types.CountyConfiguration {
	return &types.CountyConfiguration{
		CountyID:             "king",
		SupportedFormats:     []types.ExportFormat{types.FormatGeoJSON},
		DefaultFormat:        types.FormatGeoJSON,
		DefaultProjection:    "EPSG:4326",
		AvailableProjections: []string{"EPSG:4326"},
		AvailableLayers: []types.LayerDefinition{
			{ID: "parcels", GeometryType: "Polygon"},
			{ID: "hydrants", GeometryType: "Point"},
		},
		Limits: types.RateLimits{MaxLayers: 5, MaxAreaSqKm: 1000, MaxFeatures: 10000},
	}
}

func newTestEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	dir := t.TempDir()
	counties := countyconfig.New(fixedLoader{cfg: testCounty()})
	return New(Config{
		Store:         st,
		Gate:          concurrency.New(2),
		Cancellations: concurrency.NewCancellationRegistry(),
		Counties:      counties,
		ExportTimeout: 5 * time.Second,
		ExportsDir:    dir,
	})
}

func waitExportTerminal(t *testing.T, e *Engine, id string) *types.GisExport {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.GetExportStatus(context.Background(), id)
		require.NoError(t, err)
		if job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("export did not reach a terminal state in time")
	return nil
}

func TestStartExportCompletesAndWritesArtifact(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)

	id, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatGeoJSON,
		Layers:       []string{"parcels", "hydrants"},
	}, "test")
	require.NoError(t, err)

	job := waitExportTerminal(t, e, id)
	assert.Equal(t, types.StateCompleted, job.State)
	assert.Equal(t, 100, job.ProgressPercent)
	assert.NotEmpty(t, job.ResultURL)
	assert.Greater(t, job.FileSizeBytes, int64(0))

	path := filepath.Join(e.exportsDir, "export_"+id+".geojson")
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestStartExportRejectsUnsupportedFormat(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)

	_, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatShapefile,
		Layers:       []string{"parcels"},
	}, "test")
	assert.Error(t, err)
}

func TestStartExportRejectsUnknownLayer(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)

	_, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatGeoJSON,
		Layers:       []string{"nonexistent-layer"},
	}, "test")
	assert.Error(t, err)
}

func TestStartExportRejectsEmptyLayerList(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)

	_, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatGeoJSON,
	}, "test")
	assert.Error(t, err)
}

func TestRecoverOnStartupFailsOrphanedRunningExports(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	job := &types.GisExport{ID: "orphan-export", CountyID: "king", State: types.StateRunning}
	require.NoError(t, st.CreateExport(ctx, job))

	require.NoError(t, e.RecoverOnStartup(ctx))

	got, err := st.GetExport(ctx, "orphan-export")
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, got.State)
}

type blockingLayerProvider struct {
	started chan string
	proceed chan struct{}
}

func (p blockingLayerProvider) Features(_ context.Context, _ string, layer types.LayerDefinition, _ map[string]any) ([]exportformat.Feature, error) {
	p.started <- layer.ID
	<-p.proceed
	return []exportformat.Feature{{Geometry: map[string]any{"type": "Point", "coordinates": []any{-122.0, 47.0}}}}, nil
}

func TestStartExportFailsWhenArtifactExceedsMaxExportSize(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)
	e.maxSizeBytes = 1 // any non-empty GeoJSON artifact exceeds this

	id, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatGeoJSON,
		Layers:       []string{"parcels", "hydrants"},
	}, "test")
	require.NoError(t, err)

	job := waitExportTerminal(t, e, id)
	assert.Equal(t, types.StateFailed, job.State)
	assert.Contains(t, job.ErrorMessage, "exceeds max_export_size_mb limit")

	_, statErr := os.Stat(filepath.Join(e.exportsDir, "export_"+id+".geojson"))
	assert.True(t, os.IsNotExist(statErr), "oversized artifact should have been removed")
}

func TestStartExportCancelsMidRunAndCleansUpPartialArtifact(t *testing.T) {
	started := make(chan string, 1)
	proceed := make(chan struct{})
	layersource.Register("blocking-test", blockingLayerProvider{started: started, proceed: proceed})
	layersource.SetActive("blocking-test")
	defer layersource.SetActive("fixture")

	st := store.NewMemStore()
	e := newTestEngine(t, st)

	id, err := e.StartExport(context.Background(), CreateExportRequest{
		CountyID:     "king",
		ExportFormat: types.FormatGeoJSON,
		Layers:       []string{"parcels", "hydrants"},
	}, "test")
	require.NoError(t, err)

	<-started // the first layer's Features call is in flight
	require.NoError(t, e.CancelExport(id))
	close(proceed) // let Features return so the loop's next check observes the cancellation

	job := waitExportTerminal(t, e, id)
	assert.Equal(t, types.StateCanceled, job.State)
	assert.Equal(t, "export was cancelled", job.ErrorMessage)

	_, statErr := os.Stat(filepath.Join(e.exportsDir, "export_"+id+".geojson"))
	assert.True(t, os.IsNotExist(statErr), "no artifact should remain after cancellation")
}

func TestCancelExportOnUnknownIDFails(t *testing.T) {
	st := store.NewMemStore()
	e := newTestEngine(t, st)
	assert.Error(t, e.CancelExport("never-started"))
}
