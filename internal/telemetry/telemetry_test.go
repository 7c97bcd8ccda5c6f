package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
)

func TestSyncOperationLifecycleRecordsWithoutInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		SyncOperationStarted(ctx)
		SyncOperationFinished(ctx, true, 50*time.Millisecond)
		SyncOperationFinished(ctx, false, 10*time.Millisecond)
	})
}

func TestExportLifecycleRecordsWithoutInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		ExportStarted(ctx)
		ExportFinished(ctx, true, time.Second)
		ExportFinished(ctx, false, time.Second)
	})
}

func TestStartSpanAndEndSpanWithoutInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		spanCtx, span := StartSpan(ctx, "test-span")
		assert.NotNil(t, spanCtx)
		EndSpan(span, nil)

		_, span2 := StartSpan(ctx, "test-span-err")
		EndSpan(span2, errors.New("boom"))
	})
}

func TestRegisterInstrumentsIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		registerInstruments(otel.Meter(instrumentationName))
	})
}
