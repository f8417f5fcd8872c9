package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRunHandlerStampsSensorAndSession(t *testing.T) {
	var buf bytes.Buffer
	handler := newRunHandler(slog.NewJSONHandler(&buf, nil), "sonar", "run-123")

	slog.New(handler).Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"run-123"`) {
		t.Errorf("expected session_id in output, got: %s", output)
	}
	if !strings.Contains(output, `"sensor":"sonar"`) {
		t.Errorf("expected sensor in output, got: %s", output)
	}
}

func TestRunHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := newRunHandler(slog.NewJSONHandler(&buf, nil), "camera", "session-abc")

	slog.New(handler).With("extra", "value").Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"session-abc"`) {
		t.Errorf("expected session_id in output, got: %s", output)
	}
	if !strings.Contains(output, `"extra":"value"`) {
		t.Errorf("expected extra attr in output, got: %s", output)
	}
}

func TestRunHandlerPassThrough(t *testing.T) {
	base := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if got := newRunHandler(base, "", ""); got != base {
		t.Errorf("expected base handler when no run fields are set, got %T", got)
	}
	if _, ok := newRunHandler(nil, "camera", "x").(NoopHandler); !ok {
		t.Error("expected NoopHandler when base is nil")
	}
}
