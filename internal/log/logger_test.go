package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below level were logged:\n%s", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("expected warn and error lines, got:\n%s", out)
	}
}

func TestNamedLogger(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	l := Named("pipeline")
	if l.Name() != "pipeline" {
		t.Fatalf("Name = %q", l.Name())
	}
	l.Debugf("tick %d", 7)
	l.Infof("started")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] pipeline: tick 7") {
		t.Errorf("missing debug line, got:\n%s", out)
	}
	if !strings.Contains(out, "[INFO]  pipeline: started") {
		t.Errorf("missing info line, got:\n%s", out)
	}
}

func TestLevelString(t *testing.T) {
	if LogLevel(42).String() != "UNKNOWN" {
		t.Error("unexpected name for unknown level")
	}
}
