package logging

import (
	"context"
	"log/slog"
)

// runHandler stamps every record with the sensor and recording session ID so
// lines from the camera and sonar drivers stay separable once the parent
// merges their output.
type runHandler struct {
	base      slog.Handler
	sensor    string
	sessionID string
}

func newRunHandler(base slog.Handler, sensor, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	if sensor == "" && sessionID == "" {
		return base
	}
	return &runHandler{base: base, sensor: sensor, sessionID: sessionID}
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.sensor != "" {
		record.AddAttrs(slog.String(FieldSensor, h.sensor))
	}
	if h.sessionID != "" {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	return h.base.Handle(ctx, record)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{base: h.base.WithAttrs(attrs), sensor: h.sensor, sessionID: h.sessionID}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{base: h.base.WithGroup(name), sensor: h.sensor, sessionID: h.sessionID}
}
