package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewZerolog_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZerolog(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("NewZerolog() error = %v", err)
	}

	logger.Info("sent item",
		String("title", "Hello"),
		Int("index", 3),
		Bool("retry", false),
		Duration("took", 2*time.Second),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "sent item" {
		t.Errorf("message = %v, want sent item", entry["message"])
	}
	if entry["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", entry["title"])
	}
	if entry["index"] != float64(3) {
		t.Errorf("index = %v, want 3", entry["index"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestNewZerolog_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZerolog(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("NewZerolog() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered entries: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("output misses warn entry: %q", out)
	}
}

func TestNewZerolog_InvalidSettings(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewZerolog(&buf, "loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewZerolog(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

type recordingLogger struct {
	NoopLogger
	fields []Field
}

func (r *recordingLogger) Info(msg string, fields ...Field) {
	r.fields = append(r.fields, fields...)
}

func TestWith_PrependsFields(t *testing.T) {
	rec := &recordingLogger{}
	l := With(rec, String("session", "abc"))
	l.Info("hello", Int("n", 1))

	if len(rec.fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(rec.fields))
	}
	if rec.fields[0].Key != "session" || rec.fields[1].Key != "n" {
		t.Errorf("field order = %v", rec.fields)
	}
}
