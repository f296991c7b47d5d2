package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	levels := []struct {
		log  func(string, ...interface{})
		name string
	}{
		{logger.Debug, "[DEBUG]"},
		{logger.Info, "[INFO]"},
		{logger.Warn, "[WARN]"},
		{logger.Error, "[ERROR]"},
	}
	for _, lv := range levels {
		lv.log("block %d done", 7)
		if !strings.Contains(buf.String(), lv.name) || !strings.Contains(buf.String(), "block 7 done") {
			t.Errorf("Expected %s entry, got: %s", lv.name, buf.String())
		}
		buf.Reset()
	}

	logger.SetLevel(LevelError)
	logger.Warn("should not appear")
	logger.Error("should appear")
	if strings.Contains(buf.String(), "should not appear") || !strings.Contains(buf.String(), "should appear") {
		t.Errorf("Level filtering failed, got: %s", buf.String())
	}
	if logger.GetLevel() != LevelError {
		t.Errorf("Expected LevelError, got %v", logger.GetLevel())
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelInfo), WithTimestamps(false), WithPrefix("kbz"))

	logger.WithFields(map[string]interface{}{
		"seq":  3,
		"file": "a.txt",
		"path": "fallback",
	}).Info("compressed")

	want := "kbz: [INFO] file=a.txt path=fallback seq=3 compressed\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	// The parent keeps its own fields
	buf.Reset()
	logger.Info("plain")
	if buf.String() != "kbz: [INFO] plain\n" {
		t.Errorf("Expected parent without fields, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	want := map[int]Level{-1: LevelError, 0: LevelWarn, 1: LevelInfo, 2: LevelDebug, 4: LevelDebug}
	for v, lvl := range want {
		if got := LevelFromVerbosity(v); got != lvl {
			t.Errorf("LevelFromVerbosity(%d): expected %v, got %v", v, lvl, got)
		}
	}
}

func TestDefaultLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(WithOutput(&buf), WithLevel(LevelInfo)))

	WithField("stream", 1).Warn("checksum mismatch")
	output := buf.String()
	if !strings.Contains(output, "[WARN]") || !strings.Contains(output, "stream=1") {
		t.Errorf("Global logging with field failed, got: %s", output)
	}

	buf.Reset()
	Discard().Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected discard logger to write nothing")
	}
}
