// Package telemetry wires the counters, gauges, and histograms the sync and
// export engines emit on every state transition. It follows the
// package-level instrument struct populated from a single otel.Meter call,
// the same shape the storage layer uses for its own db metrics: a
// process-wide MeterProvider, set once via Init. Instruments are registered
// at package init against the global provider, so the package works (as
// no-ops) before Init runs, and are registered again by Init.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/countygov/terrasync"

var (
	tracer trace.Tracer = otel.Tracer(instrumentationName)

	instruments struct {
		syncOpsTotal      metric.Int64Counter
		syncOpsSucceeded  metric.Int64Counter
		syncOpsFailed     metric.Int64Counter
		exportsTotal      metric.Int64Counter
		exportsCompleted  metric.Int64Counter
		exportsFailed     metric.Int64Counter
		syncInProgress    metric.Int64UpDownCounter
		exportInProgress  metric.Int64UpDownCounter
		syncDuration      metric.Float64Histogram
		exportDuration    metric.Float64Histogram
	}
)

// durationBuckets are the histogram boundaries for operation/export
// durations, in seconds.
var durationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

func init() {
	registerInstruments(otel.Meter(instrumentationName))
}

func registerInstruments(m metric.Meter) {
	var err error
	instruments.syncOpsTotal, err = m.Int64Counter("sync_operations_total",
		metric.WithDescription("Sync operations started"), metric.WithUnit("{operation}"))
	logInstrumentErr(err, "sync_operations_total")

	instruments.syncOpsSucceeded, err = m.Int64Counter("sync_operations_succeeded",
		metric.WithDescription("Sync operations that completed successfully"), metric.WithUnit("{operation}"))
	logInstrumentErr(err, "sync_operations_succeeded")

	instruments.syncOpsFailed, err = m.Int64Counter("sync_operations_failed",
		metric.WithDescription("Sync operations that failed"), metric.WithUnit("{operation}"))
	logInstrumentErr(err, "sync_operations_failed")

	instruments.exportsTotal, err = m.Int64Counter("gis_exports_total",
		metric.WithDescription("GIS exports started"), metric.WithUnit("{export}"))
	logInstrumentErr(err, "gis_exports_total")

	instruments.exportsCompleted, err = m.Int64Counter("gis_exports_completed",
		metric.WithDescription("GIS exports that completed successfully"), metric.WithUnit("{export}"))
	logInstrumentErr(err, "gis_exports_completed")

	instruments.exportsFailed, err = m.Int64Counter("gis_exports_failed",
		metric.WithDescription("GIS exports that failed"), metric.WithUnit("{export}"))
	logInstrumentErr(err, "gis_exports_failed")

	instruments.syncInProgress, err = m.Int64UpDownCounter("sync_operations_in_progress",
		metric.WithDescription("Sync operations currently running"), metric.WithUnit("{operation}"))
	logInstrumentErr(err, "sync_operations_in_progress")

	instruments.exportInProgress, err = m.Int64UpDownCounter("gis_exports_in_progress",
		metric.WithDescription("GIS exports currently running"), metric.WithUnit("{export}"))
	logInstrumentErr(err, "gis_exports_in_progress")

	instruments.syncDuration, err = m.Float64Histogram("sync_operation_duration_seconds",
		metric.WithDescription("Sync operation wall-clock duration"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	logInstrumentErr(err, "sync_operation_duration_seconds")

	instruments.exportDuration, err = m.Float64Histogram("gis_export_duration_seconds",
		metric.WithDescription("GIS export wall-clock duration"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	logInstrumentErr(err, "gis_export_duration_seconds")
}

func logInstrumentErr(err error, name string) {
	if err != nil {
		fmt.Printf("telemetry: failed to register instrument %s: %v\n", name, err)
	}
}

// Exporter selects the destination for metrics. Traces are written to stdout
// with either setting.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
)

// Config controls Init's provider construction.
type Config struct {
	Exporter    Exporter
	OTLPHTTPURL string // e.g. "localhost:4318", used only when Exporter == ExporterOTLP
	ServiceName string
}

// Shutdown flushes and releases the providers set up by Init.
type Shutdown func(context.Context) error

// Init installs a global MeterProvider and TracerProvider according to cfg.
// It uses the global provider, which is a no-op until Init is called; callers
// that never call Init still get correct, inert instrument calls.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "terrasync"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", name),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var metricReader sdkmetric.Reader
	var traceExporter sdktrace.SpanExporter

	switch cfg.Exporter {
	case ExporterOTLP:
		me, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.OTLPHTTPURL), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(me)
		traceExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
		}
	default:
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: build stdout metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(me)
		traceExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
		}
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader), sdkmetric.WithResource(res))
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res))

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	registerInstruments(otel.Meter(instrumentationName))
	tracer = otel.Tracer(instrumentationName)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}, nil
}

// StartSpan starts a span named name under the package tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// EndSpan records err (if non-nil) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// SyncOperationStarted records the start of a sync operation.
func SyncOperationStarted(ctx context.Context) {
	instruments.syncOpsTotal.Add(ctx, 1)
	instruments.syncInProgress.Add(ctx, 1)
}

// SyncOperationFinished records the terminal state and duration of a sync
// operation. succeeded distinguishes completed from failed/canceled.
func SyncOperationFinished(ctx context.Context, succeeded bool, duration time.Duration) {
	instruments.syncInProgress.Add(ctx, -1)
	if succeeded {
		instruments.syncOpsSucceeded.Add(ctx, 1)
	} else {
		instruments.syncOpsFailed.Add(ctx, 1)
	}
	instruments.syncDuration.Record(ctx, duration.Seconds())
}

// ExportStarted records the start of a GIS export.
func ExportStarted(ctx context.Context) {
	instruments.exportsTotal.Add(ctx, 1)
	instruments.exportInProgress.Add(ctx, 1)
}

// ExportFinished records the terminal state and duration of a GIS export.
func ExportFinished(ctx context.Context, succeeded bool, duration time.Duration) {
	instruments.exportInProgress.Add(ctx, -1)
	if succeeded {
		instruments.exportsCompleted.Add(ctx, 1)
	} else {
		instruments.exportsFailed.Add(ctx, 1)
	}
	instruments.exportDuration.Record(ctx, duration.Seconds())
}
