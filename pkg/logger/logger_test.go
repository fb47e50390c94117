package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestInitFiltersByLevel(t *testing.T) {
	defer func() { defaultLogger = nil }()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelWarn, Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	LogPhase("lower")
	LogAllocation("run", 2, 4)
	Warn("Register allocation failed", "method", "run")

	out := buf.String()
	if strings.Contains(out, "Starting compilation phase") || strings.Contains(out, "Register allocation complete") {
		t.Errorf("records below warn were written:\n%s", out)
	}
	if !strings.Contains(out, `"method":"run"`) {
		t.Errorf("expected the warning record:\n%s", out)
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	if err := Init(Config{Format: "xml", Output: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	defaultLogger = nil
	// must not panic
	Debug("quiet")
	LogCodeGen("Test", "run", 1, 1)
}
