// ABOUTME: OpenTelemetry exporter factory for metric and trace exporters (stdout, OTLP)
// ABOUTME: Maps configured exporter names onto SDK exporters

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

func (c *Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stderr
}

// createMetricExporters creates metric exporters based on configuration. Only stdout
// exports metrics; the OTLP setup carries traces.
func createMetricExporters(cfg Config) ([]metric.Exporter, error) {
	var exporters []metric.Exporter

	if cfg.HasExporter(ExporterStdout) {
		exporter, err := stdoutmetric.New(
			stdoutmetric.WithWriter(cfg.output()),
			stdoutmetric.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	return exporters, nil
}

// createTraceExporters creates trace exporters based on configuration.
func createTraceExporters(ctx context.Context, cfg Config) ([]trace.SpanExporter, error) {
	var exporters []trace.SpanExporter

	for _, name := range cfg.Exporters {
		switch name {
		case ExporterOTLP:
			exporter, err := otlptracegrpc.New(
				ctx,
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithTimeout(cfg.ExportTimeout),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)

		case ExporterStdout:
			exporter, err := stdouttrace.New(
				stdouttrace.WithWriter(cfg.output()),
				stdouttrace.WithPrettyPrint(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		}
	}

	return exporters, nil
}
