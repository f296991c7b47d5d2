// ABOUTME: Tests for telemetry configuration validation, environment variable loading, and default values
// ABOUTME: Ensures configuration behaves correctly with valid and invalid inputs

package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "kbz" {
		t.Errorf("Expected default service name 'kbz', got '%s'", cfg.ServiceName)
	}

	if cfg.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}

	if len(cfg.Exporters) != 1 || cfg.Exporters[0] != ExporterStdout {
		t.Errorf("Expected default exporters ['stdout'], got %v", cfg.Exporters)
	}

	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint 'localhost:4317', got '%s'", cfg.OTLPEndpoint)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"otlp exporter", func(c *Config) { c.Exporters = []string{ExporterOTLP, ExporterStdout} }, false},
		{"empty service name", func(c *Config) { c.ServiceName = "" }, true},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }, true},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, true},
		{"sample rate too high", func(c *Config) { c.SampleRate = 1.1 }, true},
		{"zero export interval", func(c *Config) { c.ExportInterval = 0 }, true},
		{"zero export timeout", func(c *Config) { c.ExportTimeout = 0 }, true},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }, true},
		{"batch above queue", func(c *Config) { c.MaxExportBatchSize = c.MaxQueueSize + 1 }, true},
		{"unknown exporter", func(c *Config) { c.Exporters = []string{"prometheus"} }, true},
		{"otlp without endpoint", func(c *Config) {
			c.Exporters = []string{ExporterOTLP}
			c.OTLPEndpoint = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("KBZ_TELEMETRY_SERVICE_NAME", "kbz-test")
	t.Setenv("KBZ_TELEMETRY_SERVICE_VERSION", "2.0.0")
	t.Setenv("KBZ_TELEMETRY_ENABLED", "true")
	t.Setenv("KBZ_TELEMETRY_EXPORTERS", " stdout , otlp ,")
	t.Setenv("KBZ_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("KBZ_TELEMETRY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("KBZ_TELEMETRY_EXPORT_INTERVAL", "1s")
	t.Setenv("KBZ_TELEMETRY_EXPORT_TIMEOUT", "60s")
	t.Setenv("KBZ_TELEMETRY_MAX_QUEUE_SIZE", "100")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "kbz-test" {
		t.Errorf("Expected service name 'kbz-test', got '%s'", cfg.ServiceName)
	}
	if cfg.ServiceVersion != "2.0.0" {
		t.Errorf("Expected service version '2.0.0', got '%s'", cfg.ServiceVersion)
	}
	if !cfg.Enabled {
		t.Error("Expected telemetry to be enabled")
	}
	if len(cfg.Exporters) != 2 || !cfg.HasExporter(ExporterStdout) || !cfg.HasExporter(ExporterOTLP) {
		t.Errorf("Expected exporters [stdout otlp], got %v", cfg.Exporters)
	}
	if cfg.SampleRate != 0.5 {
		t.Errorf("Expected sample rate 0.5, got %f", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Errorf("Expected OTLP endpoint 'collector:4317', got '%s'", cfg.OTLPEndpoint)
	}
	if cfg.ExportInterval != time.Second {
		t.Errorf("Expected export interval 1s, got %s", cfg.ExportInterval)
	}
	if cfg.ExportTimeout != 60*time.Second {
		t.Errorf("Expected export timeout 60s, got %s", cfg.ExportTimeout)
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("Expected max queue size 100, got %d", cfg.MaxQueueSize)
	}
}

func TestConfigLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("KBZ_TELEMETRY_ENABLED", "maybe")
	t.Setenv("KBZ_TELEMETRY_SAMPLE_RATE", "half")
	t.Setenv("KBZ_TELEMETRY_BATCH_TIMEOUT", "soon")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	def := DefaultConfig()

	if cfg.Enabled != def.Enabled {
		t.Error("Invalid boolean should not change the value")
	}
	if cfg.SampleRate != def.SampleRate {
		t.Error("Invalid sample rate should not change the value")
	}
	if cfg.BatchTimeout != def.BatchTimeout {
		t.Error("Invalid duration should not change the value")
	}
}

func TestParseExporters(t *testing.T) {
	got := ParseExporters("stdout,, otlp ")
	if len(got) != 2 || got[0] != "stdout" || got[1] != "otlp" {
		t.Errorf("Expected [stdout otlp], got %v", got)
	}
	if got := ParseExporters(""); len(got) != 0 {
		t.Errorf("Expected no exporters, got %v", got)
	}
}
