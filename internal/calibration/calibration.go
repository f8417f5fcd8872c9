// Package calibration loads the lens calibration applied to camera frames
// before they are written.
//
// Files use the OpenCV FileStorage YAML layout:
//
//	%YAML:1.0
//	---
//	cameraMatrix: !!opencv-matrix
//	   rows: 3
//	   cols: 3
//	   dt: d
//	   data: [ fx, 0., cx, 0., fy, cy, 0., 0., 1. ]
//	distCoeffs: !!opencv-matrix
//	   rows: 1
//	   cols: 5
//	   dt: d
//	   data: [ k1, k2, p1, p2, k3 ]
package calibration

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Calibration is an intrinsic camera matrix (row-major 3x3) plus distortion
// coefficients.
type Calibration struct {
	CameraMatrix [9]float64
	DistCoeffs   []float64
	// Source is the file the values were read from; empty for Identity.
	Source string
}

// Identity returns the no-op calibration: identity matrix, five zero
// distortion coefficients.
func Identity() Calibration {
	return Calibration{
		CameraMatrix: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		DistCoeffs:   make([]float64, 5),
	}
}

// IsIdentity reports whether applying c would leave frames unchanged.
func (c Calibration) IsIdentity() bool {
	if c.CameraMatrix != Identity().CameraMatrix {
		return false
	}
	for _, k := range c.DistCoeffs {
		if k != 0 {
			return false
		}
	}
	return true
}

// Load reads the first existing file among candidates. When none exists it
// returns Identity with found=false and no error.
func Load(candidates ...string) (cal Calibration, found bool, err error) {
	for _, path := range candidates {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Identity(), false, fmt.Errorf("read calibration %s: %w", path, err)
		}
		cal, err := Parse(data)
		if err != nil {
			return Identity(), false, fmt.Errorf("parse calibration %s: %w", path, err)
		}
		cal.Source = path
		return cal, true, nil
	}
	return Identity(), false, nil
}

type matrixNode struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	DT   string    `yaml:"dt"`
	Data []float64 `yaml:"data"`
}

type document struct {
	CameraMatrix *matrixNode `yaml:"cameraMatrix"`
	DistCoeffs   *matrixNode `yaml:"distCoeffs"`
}

// Parse decodes OpenCV FileStorage YAML. Missing keys fall back to the
// identity values, matching how an absent node reads in OpenCV.
func Parse(data []byte) (Calibration, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(stripDirectives(data), &root); err != nil {
		return Calibration{}, err
	}
	clearTags(&root)

	var doc document
	if err := root.Decode(&doc); err != nil {
		return Calibration{}, err
	}

	cal := Identity()
	if m := doc.CameraMatrix; m != nil {
		if m.Rows != 3 || m.Cols != 3 || len(m.Data) != 9 {
			return Calibration{}, fmt.Errorf("cameraMatrix must be 3x3, got %dx%d with %d values", m.Rows, m.Cols, len(m.Data))
		}
		copy(cal.CameraMatrix[:], m.Data)
	}
	if m := doc.DistCoeffs; m != nil {
		if len(m.Data) != m.Rows*m.Cols {
			return Calibration{}, fmt.Errorf("distCoeffs declares %dx%d but has %d values", m.Rows, m.Cols, len(m.Data))
		}
		switch len(m.Data) {
		case 4, 5, 8, 12, 14:
		default:
			return Calibration{}, fmt.Errorf("distCoeffs: unsupported coefficient count %d", len(m.Data))
		}
		cal.DistCoeffs = append([]float64(nil), m.Data...)
	}
	return cal, nil
}

// stripDirectives drops "%YAML:1.0" style lines that yaml.v3 rejects.
func stripDirectives(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	out := lines[:0]
	for _, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("%")) {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

// clearTags removes application tags such as !!opencv-matrix so nodes decode
// by shape.
func clearTags(n *yaml.Node) {
	switch n.ShortTag() {
	case "!!str", "!!int", "!!float", "!!bool", "!!null", "!!map", "!!seq", "!!binary", "!!timestamp", "!!merge":
	default:
		n.Tag = ""
	}
	for _, child := range n.Content {
		clearTags(child)
	}
}
