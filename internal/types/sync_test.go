package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCanceled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
}

func TestConflictStrategyValid(t *testing.T) {
	assert.True(t, StrategySourceWins.Valid())
	assert.True(t, StrategyNewerWins.Valid())
	assert.False(t, ConflictStrategy("bogus").Valid())
}

func validPair() *SyncPair {
	return &SyncPair{
		SourceSystem:         "file",
		TargetSystem:         "database",
		FieldMappings:        []FieldMapping{{SourcePath: "a", TargetPath: "b"}},
		SyncConflictStrategy: StrategySourceWins,
	}
}

func TestSyncPairValidateRequiresSourceAndTarget(t *testing.T) {
	p := validPair()
	p.SourceSystem = ""
	assert.Error(t, p.Validate())

	p = validPair()
	p.TargetSystem = ""
	assert.Error(t, p.Validate())
}

func TestSyncPairValidateRequiresFieldMappings(t *testing.T) {
	p := validPair()
	p.FieldMappings = nil
	assert.Error(t, p.Validate())
}

func TestSyncPairValidateRejectsUnknownStrategy(t *testing.T) {
	p := validPair()
	p.SyncConflictStrategy = ConflictStrategy("bogus")
	assert.Error(t, p.Validate())
}

func TestSyncPairValidateAcceptsWellFormedPair(t *testing.T) {
	assert.NoError(t, validPair().Validate())
}

func TestSyncOperationAppendLogAccumulates(t *testing.T) {
	op := &SyncOperation{}
	op.AppendLog("info", "first", nil)
	op.AppendLog("info", "second", map[string]any{"k": "v"})

	require := assert.New(t)
	require.Len(op.ExecutionLogs, 2)
	require.Equal("first", op.ExecutionLogs[0].Message)
	require.Equal("v", op.ExecutionLogs[1].Fields["k"])
}
