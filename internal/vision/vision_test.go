package vision

import (
	"bytes"
	"testing"
)

func TestWriteMatrixLayout(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		rows, cols int
		width      int
		want       string
	}{
		{"8-bit", []byte{1, 2, 3, 4, 5, 6}, 2, 3, 1, "[1, 2, 3;\n 4, 5, 6]"},
		{"16-bit little endian", []byte{0x00, 0x01, 0xff, 0xff}, 1, 2, 2, "[256, 65535]"},
		{"single", []byte{9}, 1, 1, 1, "[9]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeMatrix(&buf, tc.data, tc.rows, tc.cols, tc.width); err != nil {
				t.Fatalf("writeMatrix: %v", err)
			}
			if buf.String() != tc.want {
				t.Fatalf("got %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

func TestWriteMatrixShortBuffer(t *testing.T) {
	if err := writeMatrix(&bytes.Buffer{}, []byte{1, 2}, 2, 2, 1); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestStretchParams(t *testing.T) {
	alpha, beta := stretchParams(1000, 2020)
	if got := 1000*alpha + beta; got != 0 {
		t.Fatalf("min maps to %v, want 0", got)
	}
	if got := 2020*alpha + beta; got < 254.999 || got > 255.001 {
		t.Fatalf("max maps to %v, want 255", got)
	}
	if a, b := stretchParams(5, 5); a != 0 || b != 0 {
		t.Fatalf("flat frame params = %v, %v", a, b)
	}
}
