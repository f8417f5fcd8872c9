package recorder

import (
	"io"
	"log/slog"

	"fieldrec/internal/calibration"
	"fieldrec/internal/pipeline"
	"fieldrec/internal/preview"
	"fieldrec/internal/sensor"
	"fieldrec/internal/session"
)

// Media supplies the frame-level capabilities a run needs. The command layer
// fills it from the OpenCV bindings; tests supply fakes.
type Media struct {
	// Open returns the capture opener for src.
	Open func(src sensor.Source, logger *slog.Logger) pipeline.OpenFunc
	// Prepare builds the pre-queue transform for a profile.
	Prepare func(p sensor.Profile) pipeline.Transformer
	// Correct builds the persister correction from a calibration. A result
	// implementing io.Closer is closed when the run ends.
	Correct func(cal calibration.Calibration) pipeline.Transformer
	Writer  pipeline.ImageWriter
	Encoder preview.Encoder
	Dump    session.DumpFunc
}

func (m Media) prepare(p sensor.Profile) pipeline.Transformer {
	if m.Prepare == nil {
		return pipeline.Identity
	}
	return m.Prepare(p)
}

func (m Media) correct(p sensor.Profile, cal calibration.Calibration) pipeline.Transformer {
	if !p.Undistort || m.Correct == nil {
		return pipeline.Identity
	}
	return m.Correct(cal)
}

func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
