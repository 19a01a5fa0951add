package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"chatty", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Debugf("x %d", 1)
	l.Infof("x")
	l.Warn(errors.New("boom"), "warn")
	l.Error(nil, "err")
	if l.With("k", "v") != nil {
		t.Error("With on nil logger should return nil")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestNewDebugLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.With("workflow", "deploy").Debugf("step %s started", "build")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "step build started") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"workflow":"deploy"`) {
		t.Errorf("log file missing field: %s", data)
	}
}

func TestNewDebugLoggerEmptyPath(t *testing.T) {
	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Debugf("discarded")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewWrapsZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))
	l.Warn(errors.New("listener exploded"), "listener failed")
	if !strings.Contains(buf.String(), "listener exploded") {
		t.Errorf("output missing error: %s", buf.String())
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("info", &buf); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	Global("test").Infof("hello %s", "world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Errorf("console output missing message: %q", buf.String())
	}
	if err := Init("loud", &buf); err == nil {
		t.Error("expected error for unknown level")
	}
}
