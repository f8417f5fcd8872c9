package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"fieldrec/internal/calibration"
	"fieldrec/internal/frame"
	"fieldrec/internal/pipeline"
)

func asMat(f frame.Frame) (*gocv.Mat, error) {
	m, ok := f.(*gocv.Mat)
	if !ok || m == nil {
		return nil, fmt.Errorf("vision: unsupported frame type %T", f)
	}
	return m, nil
}

// Resize returns a transformer scaling frames to width x height.
func Resize(width, height int) pipeline.Transformer {
	return pipeline.TransformFunc(func(f frame.Frame) (frame.Frame, error) {
		src, err := asMat(f)
		if err != nil {
			return nil, err
		}
		if src.Cols() == width && src.Rows() == height {
			return f, nil
		}
		dst := gocv.NewMat()
		gocv.Resize(*src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		return &dst, nil
	})
}

// Grayscale converts 3- and 4-channel frames to single-channel; other frames
// pass through unchanged.
func Grayscale() pipeline.Transformer {
	return pipeline.TransformFunc(func(f frame.Frame) (frame.Frame, error) {
		src, err := asMat(f)
		if err != nil {
			return nil, err
		}
		var code gocv.ColorConversionCode
		switch src.Channels() {
		case 3:
			code = gocv.ColorBGRToGray
		case 4:
			code = gocv.ColorBGRAToGray
		default:
			return f, nil
		}
		dst := gocv.NewMat()
		gocv.CvtColor(*src, &dst, code)
		return &dst, nil
	})
}

// Undistorter removes lens distortion with a fixed calibration.
type Undistorter struct {
	camera gocv.Mat
	dist   gocv.Mat
	skip   bool
}

// NewUndistorter builds the calibration matrices. An identity calibration
// yields a pass-through transformer.
func NewUndistorter(cal calibration.Calibration) *Undistorter {
	u := &Undistorter{skip: cal.IsIdentity()}
	u.camera = gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i, v := range cal.CameraMatrix {
		u.camera.SetDoubleAt(i/3, i%3, v)
	}
	u.dist = gocv.NewMatWithSize(1, len(cal.DistCoeffs), gocv.MatTypeCV64F)
	for i, v := range cal.DistCoeffs {
		u.dist.SetDoubleAt(0, i, v)
	}
	return u
}

// Apply returns the undistorted frame.
func (u *Undistorter) Apply(f frame.Frame) (frame.Frame, error) {
	if u.skip {
		return f, nil
	}
	src, err := asMat(f)
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	gocv.Undistort(*src, &dst, u.camera, u.dist, u.camera)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("undistort produced an empty frame")
	}
	return &dst, nil
}

// Close releases the calibration matrices.
func (u *Undistorter) Close() error {
	u.camera.Close()
	return u.dist.Close()
}

// Chain applies transformers in order, releasing intermediates.
func Chain(steps ...pipeline.Transformer) pipeline.Transformer {
	return pipeline.TransformFunc(func(f frame.Frame) (frame.Frame, error) {
		current := f
		for _, step := range steps {
			next, err := step.Apply(current)
			if current != f && next != current {
				_ = current.Close()
			}
			if err != nil {
				if next != nil && next != f {
					_ = next.Close()
				}
				return nil, err
			}
			current = next
		}
		return current, nil
	})
}
