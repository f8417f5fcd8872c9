package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"fieldrec/internal/frame"
)

// PreviewEncoder downsamples and JPEG-encodes frames. Single-channel 16-bit
// frames are stretched to 8-bit over their own min/max and rendered with the
// JET colormap.
type PreviewEncoder struct {
	Width, Height int
	Quality       int
}

// Encode implements preview.Encoder.
func (e PreviewEncoder) Encode(f frame.Frame) ([]byte, error) {
	src, err := asMat(f)
	if err != nil {
		return nil, err
	}
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*src, &small, image.Pt(e.Width, e.Height), 0, 0, gocv.InterpolationLinear)

	out := small
	if small.Type() == gocv.MatTypeCV16U {
		colored, err := colorize16(small)
		if err != nil {
			return nil, err
		}
		defer colored.Close()
		out = colored
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{int(gocv.IMWriteJpegQuality), e.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

func colorize16(src gocv.Mat) (gocv.Mat, error) {
	minVal, maxVal, _, _ := gocv.MinMaxLoc(src)
	alpha, beta := stretchParams(float64(minVal), float64(maxVal))

	eight := gocv.NewMat()
	defer eight.Close()
	src.ConvertToWithParams(&eight, gocv.MatTypeCV8U, float32(alpha), float32(beta))

	colored := gocv.NewMat()
	gocv.ApplyColorMap(eight, &colored, gocv.ColormapJet)
	if colored.Empty() {
		colored.Close()
		return gocv.Mat{}, fmt.Errorf("colormap produced an empty frame")
	}
	return colored, nil
}

// stretchParams maps [lo, hi] onto [0, 255]. A flat frame maps to 0.
func stretchParams(lo, hi float64) (alpha, beta float64) {
	if hi <= lo {
		return 0, 0
	}
	alpha = 255.0 / (hi - lo)
	return alpha, -lo * alpha
}
