// ABOUTME: Tests for telemetry provider creation against the real SDK with the stdout exporter
// ABOUTME: Validates provider initialization, export on shutdown, and the no-op fallback

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewDisabledReturnsNoop(t *testing.T) {
	tel, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := tel.(*NoopTelemetry); !ok {
		t.Errorf("Expected *NoopTelemetry, got %T", tel)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""

	tel, err := New(cfg)
	if err == nil {
		t.Error("Expected error for invalid config but got none")
	}
	if tel != nil {
		t.Error("Expected nil telemetry for invalid config")
	}
}

func TestProviderExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Output = &buf

	tel, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if _, ok := tel.(*TelemetryProvider); !ok {
		t.Fatalf("Expected *TelemetryProvider, got %T", tel)
	}

	ctx := context.Background()
	ctx, span := tel.StartSpan(ctx, "kbz.test.span", attribute.String(AttrComponent, ComponentWriter))
	tel.RecordCounter(ctx, "kbz.test.blocks", 3, attribute.String(AttrSortPath, "primary"))
	tel.RecordCounter(ctx, "kbz.test.blocks", 2, attribute.String(AttrSortPath, "fallback"))
	tel.RecordHistogram(ctx, "kbz.test.duration", 0.25)
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"kbz.test.blocks", "kbz.test.duration", "kbz.test.span"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected exported data to mention %q", want)
		}
	}
}
