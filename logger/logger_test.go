package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func jsonLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: FormatJSON, Output: "stdout"}
	return NewWithWriter(cfg, "test-svc", &buf), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", line, err)
	}
	return entry
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{Level: "invalid-level", Format: FormatJSON, Output: "stdout"}
	if l := New(cfg, "test"); l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestInfo_WritesFields(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	l.WithComponent("compiler").Info("compiled", Fields(FieldStep, "load", FieldStatements, 2))

	entry := decodeLine(t, buf)
	if entry["message"] != "compiled" {
		t.Errorf("expected message 'compiled', got %v", entry["message"])
	}
	if entry[FieldComponent] != "compiler" {
		t.Errorf("expected component 'compiler', got %v", entry[FieldComponent])
	}
	if entry[FieldStep] != "load" {
		t.Errorf("expected step 'load', got %v", entry[FieldStep])
	}
	if entry["service"] != "test-svc" {
		t.Errorf("expected service 'test-svc', got %v", entry["service"])
	}
}

func TestDebug_FilteredByLevel(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	l, buf := jsonLogger(t, "debug")
	l.WithError(fmt.Errorf("boom")).Error("failed")
	entry := decodeLine(t, buf)
	if entry["error"] != "boom" {
		t.Errorf("expected error 'boom', got %v", entry["error"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.WithFields(Fields("a", 1)).Warn("still nothing")
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, "b", "two", 3, "ignored")
	if len(f) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(f))
	}
	if f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields: %v", f)
	}
}

func TestWithExecutionAndStep(t *testing.T) {
	l, buf := jsonLogger(t, "debug")
	l.WithExecution("exec-1", "nightly").WithStep("load", "bulk_load").Debug("step compiled")

	entry := decodeLine(t, buf)
	want := map[string]string{
		FieldExecutionID: "exec-1",
		FieldWorkflow:    "nightly",
		FieldStep:        "load",
		FieldStepType:    "bulk_load",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("expected %s=%q, got %v", k, v, entry[k])
		}
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "svc", &buf)
	l.Warn("slow download", Fields("url", "https://example.test"))

	out := buf.String()
	for _, want := range []string{"[WRN]", "slow download", "url:https://example.test"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", func() Config { c := Config{}; c.ApplyDefaults(); return c }(), false},
		{"bad level", Config{Level: "loud", Format: FormatJSON, Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: FormatJSON, Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
