package main

import (
	"log/slog"

	"fieldrec/internal/calibration"
	"fieldrec/internal/pipeline"
	"fieldrec/internal/preview"
	"fieldrec/internal/recorder"
	"fieldrec/internal/sensor"
	"fieldrec/internal/vision"
)

// visionMedia binds the recorder to the OpenCV implementations.
func visionMedia() recorder.Media {
	return recorder.Media{
		Open: func(src sensor.Source, logger *slog.Logger) pipeline.OpenFunc {
			return vision.Opener(captureSpec(src), logger)
		},
		Prepare: prepareTransform,
		Correct: func(cal calibration.Calibration) pipeline.Transformer {
			return vision.NewUndistorter(cal)
		},
		Writer: vision.ImageWriter{},
		Encoder: vision.PreviewEncoder{
			Width:   preview.Width,
			Height:  preview.Height,
			Quality: preview.Quality,
		},
		Dump: vision.DumpMat,
	}
}

func captureSpec(src sensor.Source) vision.CaptureSpec {
	return vision.CaptureSpec{
		URL:         src.URL,
		UseDevice:   src.UseDevice,
		Device:      src.Device,
		Width:       src.Mode.Width,
		Height:      src.Mode.Height,
		FPS:         src.Mode.FPS,
		FourCC:      src.Mode.FourCC,
		BufferSize:  src.BufferSize,
		ReadTimeout: src.ReadTimeout,
	}
}

func prepareTransform(p sensor.Profile) pipeline.Transformer {
	var steps []pipeline.Transformer
	if !p.Resize.IsZero() {
		steps = append(steps, vision.Resize(p.Resize.Width, p.Resize.Height))
	}
	if p.Grayscale {
		steps = append(steps, vision.Grayscale())
	}
	switch len(steps) {
	case 0:
		return pipeline.Identity
	case 1:
		return steps[0]
	default:
		return vision.Chain(steps...)
	}
}
