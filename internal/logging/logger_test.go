package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConsoleFormatsSensorAndComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, err := New(Options{Level: "info", Format: "console", OutputPaths: []string{path}, Sensor: "sonar", SessionID: "abc"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	NewComponentLogger(logger, "persister").Info("queue drained", Int("written", 12), String("dir", "out dir"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"INFO [sonar] persister: queue drained", "written=12", `dir="out dir"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("console line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "session_id") {
		t.Fatalf("console line should omit session id: %q", line)
	}
}

func TestNewJSONIncludesRunFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	logger, err := New(Options{Level: "warn", Format: "json", OutputPaths: []string{path}, Sensor: "camera", SessionID: "s1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("filtered")
	WarnWithContext(logger, "stream stalled", "stream_stalled", String(FieldStopReason, "stream_stalled"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record at warn level, got %d: %q", len(lines), data)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	checks := map[string]string{
		"level":         "warn",
		"msg":           "stream stalled",
		FieldSensor:     "camera",
		FieldSessionID:  "s1",
		FieldEventType:  "stream_stalled",
		FieldStopReason: "stream_stalled",
	}
	for key, want := range checks {
		if got, _ := record[key].(string); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := record[FieldErrorHint]; !ok {
		t.Error("expected default error_hint")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":         slog.LevelInfo,
		"DEBUG":    slog.LevelDebug,
		"warning":  slog.LevelWarn,
		"critical": slog.LevelError,
		"nonsense": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "sonar-old.log")
	fresh := filepath.Join(dir, "sonar-new.log")
	keep := filepath.Join(dir, "sonar-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, keep, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, keep, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	pruned := CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{keep}})
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected stale log to be removed")
	}
	for _, path := range []string{fresh, keep, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to survive: %v", filepath.Base(path), err)
		}
	}
	if CleanupOldLogs(NewNop(), 0, RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("retention of 0 must disable pruning")
	}
}
