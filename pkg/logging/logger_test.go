package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
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

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("station-review", "test", WarnLevel)
	logger.SetOutput(&buf)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	logger.Warn(context.Background(), "warn", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != "WARN" || entries[0].Message != "warn" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestStructuredLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("station-review", "test", DebugLevel).Named("review")
	logger.SetOutput(&buf)

	ctx := WithStation(WithRequestID(context.Background(), "req-1"), "igs.braz")
	logger.Error(ctx, "[REFRESH_ERROR] fetch failed", Fields{"attempt": 1}, errors.New("boom"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-1" || e.Station != "igs.braz" {
		t.Errorf("context values not logged: %+v", e)
	}
	if e.Component != "review" {
		t.Errorf("component = %q, want review", e.Component)
	}
	if e.Error != "boom" {
		t.Errorf("error = %q, want boom", e.Error)
	}
	if e.File == "" || e.Line == 0 {
		t.Error("expected caller information on error entries")
	}
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("station-review", "test", InfoLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"station": "igs.braz", "page": 1})
	scoped.Warn(context.Background(), "[STALE] discarded", Fields{"page": 2}, errors.New("superseded"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Fields["station"] != "igs.braz" {
		t.Errorf("missing scoped field: %v", entries[0].Fields)
	}
	// JSON numbers decode as float64
	if entries[0].Fields["page"] != float64(2) {
		t.Errorf("page = %v, want call field to override", entries[0].Fields["page"])
	}
	if entries[0].Error != "superseded" {
		t.Errorf("error = %q, want superseded", entries[0].Error)
	}
}

func TestNamed_SharesWriterSafely(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("station-review", "test", InfoLevel)
	logger.SetOutput(&buf)

	children := []*StructuredLogger{logger, logger.Named("review"), logger.Named("repository")}

	var wg sync.WaitGroup
	for _, l := range children {
		wg.Add(1)
		go func(l *StructuredLogger) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Info(context.Background(), "[TEST] concurrent entry", Fields{"i": i})
			}
		}(l)
	}
	wg.Wait()

	entries := decodeEntries(t, &buf)
	if len(entries) != 150 {
		t.Fatalf("got %d entries, want 150", len(entries))
	}

	components := map[string]int{}
	for _, e := range entries {
		components[e.Component]++
	}
	if components["review"] != 50 || components["repository"] != 50 || components[""] != 50 {
		t.Errorf("unexpected component counts %v", components)
	}
}
