package vision

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"gocv.io/x/gocv"

	"fieldrec/internal/frame"
)

// ImageWriter writes frames with OpenCV's codec chosen by file extension.
type ImageWriter struct{}

// WriteImage implements pipeline.ImageWriter.
func (ImageWriter) WriteImage(path string, f frame.Frame) error {
	m, err := asMat(f)
	if err != nil {
		return err
	}
	if ok := gocv.IMWrite(path, *m); !ok {
		return fmt.Errorf("imwrite %s failed", path)
	}
	return nil
}

// DumpMat renders a Mat in OpenCV's default text layout, one matrix row per
// line with channels interleaved: "[a, b, c;\n d, e, f]".
func DumpMat(w io.Writer, f frame.Frame) error {
	m, err := asMat(f)
	if err != nil {
		return err
	}
	var width int
	switch m.Type() {
	case gocv.MatTypeCV8U, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		width = 1
	case gocv.MatTypeCV16U:
		width = 2
	default:
		return fmt.Errorf("dump: unsupported mat type %v", m.Type())
	}
	data, err := m.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	return writeMatrix(w, data, m.Rows(), m.Cols()*m.Channels(), width)
}

// writeMatrix formats rows x cols unsigned little-endian samples of the given
// byte width.
func writeMatrix(w io.Writer, data []byte, rows, cols, width int) error {
	if len(data) < rows*cols*width {
		return fmt.Errorf("dump: %d bytes for %dx%d samples", len(data), rows, cols)
	}
	bw := bufio.NewWriter(w)
	scratch := make([]byte, 0, 8)
	bw.WriteByte('[')
	for r := 0; r < rows; r++ {
		if r > 0 {
			bw.WriteString(";\n ")
		}
		for c := 0; c < cols; c++ {
			if c > 0 {
				bw.WriteString(", ")
			}
			off := (r*cols + c) * width
			var v uint64
			if width == 1 {
				v = uint64(data[off])
			} else {
				v = uint64(binary.LittleEndian.Uint16(data[off:]))
			}
			scratch = strconv.AppendUint(scratch[:0], v, 10)
			bw.Write(scratch)
		}
	}
	bw.WriteByte(']')
	return bw.Flush()
}
