package vision

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"fieldrec/internal/frame"
	"fieldrec/internal/logging"
	"fieldrec/internal/pipeline"
)

// captureReadTimeoutMsec is CAP_PROP_READ_TIMEOUT_MSEC, honored by the
// FFmpeg backend.
const captureReadTimeoutMsec gocv.VideoCaptureProperties = 54

// CaptureSpec selects and tunes a capture source. Exactly one of URL or
// UseDevice applies.
type CaptureSpec struct {
	URL       string
	UseDevice bool
	Device    int

	Width, Height int
	FPS           int
	// FourCC requests a pixel format from local devices, e.g. "MJPG".
	FourCC string
	// BufferSize bounds the backend frame buffer to limit staleness.
	BufferSize  int
	ReadTimeout time.Duration
}

func (s CaptureSpec) String() string {
	if s.UseDevice {
		return fmt.Sprintf("device %d", s.Device)
	}
	return s.URL
}

// Opener returns a pipeline.OpenFunc for spec.
func Opener(spec CaptureSpec, logger *slog.Logger) pipeline.OpenFunc {
	logger = logging.NewComponentLogger(logger, "capture")
	return func() (pipeline.Capture, error) {
		logger.Info("opening capture source",
			logging.String(logging.FieldEventType, "capture_opening"),
			logging.String("source", spec.String()),
		)
		var (
			vc  *gocv.VideoCapture
			err error
		)
		if spec.UseDevice {
			vc, err = gocv.VideoCaptureDevice(spec.Device)
		} else {
			vc, err = gocv.VideoCaptureFileWithAPI(spec.URL, gocv.VideoCaptureFFmpeg)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", spec, err)
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, fmt.Errorf("open %s: backend reported closed stream", spec)
		}

		if fourcc := strings.TrimSpace(spec.FourCC); fourcc != "" {
			vc.Set(gocv.VideoCaptureFOURCC, float64(vc.ToCodec(fourcc)))
		}
		if spec.Width > 0 && spec.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(spec.Width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(spec.Height))
		}
		if spec.FPS > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(spec.FPS))
		}
		if spec.BufferSize > 0 {
			vc.Set(gocv.VideoCaptureBufferSize, float64(spec.BufferSize))
		}
		if spec.ReadTimeout > 0 {
			vc.Set(captureReadTimeoutMsec, float64(spec.ReadTimeout.Milliseconds()))
		}
		return &videoCapture{vc: vc}, nil
	}
}

type videoCapture struct {
	vc *gocv.VideoCapture
}

// Read allocates a fresh Mat per call so ownership can move down the
// pipeline without copies.
func (c *videoCapture) Read() (frame.Frame, bool) {
	m := gocv.NewMat()
	if ok := c.vc.Read(&m); !ok || m.Empty() {
		m.Close()
		return nil, false
	}
	return &m, true
}

func (c *videoCapture) Close() error {
	return c.vc.Close()
}
