package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countygov/terrasync/internal/connector"
	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/syncengine"
	"github.com/countygov/terrasync/internal/types"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{Store: store.NewMemStore(), SyncEngine: syncengine.New(syncengine.Config{Store: store.NewMemStore()})})
	assert.Equal(t, 60*time.Second, s.tickInterval)
	assert.Equal(t, 24*time.Hour, s.cleanupInterval)
	assert.Equal(t, 30*24*time.Hour, s.operationMaxAge)
	assert.Equal(t, 7*24*time.Hour, s.recordMaxAge)
}

func TestTickEnqueuesDuePairs(t *testing.T) {
	connector.RegisterSource("scheduler-test-src", connector.FileSource{})
	connector.RegisterTarget("scheduler-test-tgt", connector.FileSource{})
	connector.RegisterSource("scheduler-test-tgt", connector.FileSource{})

	st := store.NewMemStore()
	engine := syncengine.New(syncengine.Config{Store: st, MaxConcurrent: 2})

	interval := 1
	pair := &types.SyncPair{
		ID: "due-pair", IsActive: true, SyncIntervalMinutes: &interval,
		SourceSystem: "scheduler-test-src", TargetSystem: "scheduler-test-tgt",
		SyncConflictStrategy: types.StrategySourceWins,
		FieldMappings:        []types.FieldMapping{{SourcePath: "name", TargetPath: "name"}},
	}
	require.NoError(t, st.PutSyncPair(context.Background(), pair))

	s := New(Config{Store: st, SyncEngine: engine, TickInterval: time.Hour})
	s.tick()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ops, err := st.ListOperations(context.Background(), store.OperationFilter{SyncPairID: "due-pair"}, store.Page{})
		require.NoError(t, err)
		if len(ops) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("tick did not enqueue the due pair")
}

func TestCleanupDeletesExpiredOperationsAndRecords(t *testing.T) {
	st := store.NewMemStore()
	engine := syncengine.New(syncengine.Config{Store: st, MaxConcurrent: 2})
	s := New(Config{
		Store: st, SyncEngine: engine,
		OperationMaxAge: time.Hour, RecordMaxAge: time.Hour,
	})
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.CreateOperation(ctx, &types.SyncOperation{
		ID: "old-op", State: types.StateCompleted, StartTime: past,
	}))
	require.NoError(t, st.PutRecord(ctx, &types.SyncRecord{ID: "old-rec", OperationID: "old-op"}))

	s.cleanup(ctx)

	_, err := st.GetOperation(ctx, "old-op")
	assert.Error(t, err, "expired terminal operation should have been deleted")

	recs, err := st.ListRecords(ctx, "old-op", store.Page{})
	require.NoError(t, err)
	assert.Empty(t, recs, "records of the expired operation should have been deleted")
}

func TestStartStopLifecycle(t *testing.T) {
	st := store.NewMemStore()
	engine := syncengine.New(syncengine.Config{Store: st, MaxConcurrent: 2})
	s := New(Config{Store: st, SyncEngine: engine, TickInterval: 10 * time.Millisecond, CleanupInterval: time.Hour})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}
