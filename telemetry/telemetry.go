// ABOUTME: OpenTelemetry bootstrap: stdout log and metric exporters wired into
// ABOUTME: global providers, an otelslog-backed slog logger, and one shutdown hook.

package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "spyglass"

// ShutdownFunc flushes and stops all telemetry providers.
type ShutdownFunc func(context.Context) error

// Setup installs the global logger and meter providers backed by stdout
// exporters. The returned shutdown func must be called on exit; the returned
// logger routes slog records through the OpenTelemetry log pipeline.
func Setup(ctx context.Context) (*slog.Logger, ShutdownFunc, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, err
	}

	var shutdowns []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		shutdowns = nil
		return errors.Join(errs...)
	}

	logExporter, err := stdoutlog.New()
	if err != nil {
		return nil, nil, err
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	shutdowns = append(shutdowns, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(time.Minute))),
	)
	shutdowns = append(shutdowns, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logger := slog.New(otelslog.NewHandler(serviceName,
		otelslog.WithLoggerProvider(loggerProvider)))
	return logger, shutdown, nil
}
