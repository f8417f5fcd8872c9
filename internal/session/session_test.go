package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldrec/internal/frame"
)

type textFrame struct{ body string }

func (f *textFrame) Empty() bool  { return f.body == "" }
func (f *textFrame) Close() error { return nil }

func dumpText(w io.Writer, f frame.Frame) error {
	_, err := io.WriteString(w, f.(*textFrame).body)
	return err
}

func TestNewPathsLayout(t *testing.T) {
	root := t.TempDir()
	p, err := NewPaths(root, "sonar", true)
	if err != nil {
		t.Fatalf("NewPaths: %v", err)
	}
	if p.Images != filepath.Join(root, "sonar", "images") || p.Raw != filepath.Join(root, "sonar", "raw") {
		t.Fatalf("unexpected layout: %+v", p)
	}
	if p.Timestamps != filepath.Join(root, "sonar", "timestamps.txt") {
		t.Fatalf("timestamps path = %q", p.Timestamps)
	}
	if err := p.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	for _, dir := range []string{p.Images, p.Raw} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if got := p.ImagePath(7, "jpg"); got != filepath.Join(p.Images, "image7.jpg") {
		t.Fatalf("ImagePath = %q", got)
	}

	camera, err := NewPaths(root, "camera_1", false)
	if err != nil {
		t.Fatalf("NewPaths: %v", err)
	}
	if camera.Raw != "" {
		t.Fatalf("camera layout should have no raw dir, got %q", camera.Raw)
	}
}

func TestNewPathsRejectsBadInput(t *testing.T) {
	if _, err := NewPaths("  ", "sonar", false); err == nil {
		t.Fatal("expected error for empty root")
	}
	if _, err := NewPaths(t.TempDir(), "../escape", false); err == nil {
		t.Fatal("expected error for nested sensor dir")
	}
}

func TestTimestampLogRowsAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timestamps.txt")
	log, err := OpenTimestampLog(path)
	if err != nil {
		t.Fatalf("OpenTimestampLog: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := log.Record(fmt.Sprintf("image%d", i), int64(1700000000000+i)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if log.Rows() != 3 {
		t.Fatalf("Rows = %d", log.Rows())
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := log.Close(); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("second Close = %v, want os.ErrClosed", err)
	}
	if err := log.Record("image3", 1); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Record after close = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "image0 1700000000000\nimage1 1700000000001\nimage2 1700000000002\n"
	if string(data) != want {
		t.Fatalf("timestamp file = %q, want %q", data, want)
	}
}

func TestRawSidecar(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			s := RawSidecar{Dir: t.TempDir(), Compress: compress, Dump: dumpText}
			item := frame.Item{Timestamp: 1234}
			if err := s.WriteSidecar(4, "image4", item, &textFrame{body: "[1, 2;\n 3, 4]"}); err != nil {
				t.Fatalf("WriteSidecar: %v", err)
			}
			path := s.Path(4)
			if compress != strings.HasSuffix(path, ".zst") {
				t.Fatalf("unexpected sidecar name %q", path)
			}
			r, err := OpenSidecar(path)
			if err != nil {
				t.Fatalf("OpenSidecar: %v", err)
			}
			defer r.Close()
			data, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if want := "image4 1234\n[1, 2;\n 3, 4]\n\n"; string(data) != want {
				t.Fatalf("sidecar = %q, want %q", data, want)
			}
		})
	}
}

func TestRawSidecarDumpFailure(t *testing.T) {
	errDump := errors.New("matrix unavailable")
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			s := RawSidecar{Dir: t.TempDir(), Compress: compress, Dump: func(io.Writer, frame.Frame) error { return errDump }}
			err := s.WriteSidecar(1, "image1", frame.Item{Timestamp: 5}, &textFrame{body: "x"})
			if !errors.Is(err, errDump) {
				t.Fatalf("WriteSidecar = %v, want dump error", err)
			}

			s.Dump = dumpText
			if err := s.WriteSidecar(1, "image1", frame.Item{Timestamp: 6}, &textFrame{body: "[7]"}); err != nil {
				t.Fatalf("rewrite after failure: %v", err)
			}
			r, err := OpenSidecar(s.Path(1))
			if err != nil {
				t.Fatalf("OpenSidecar: %v", err)
			}
			defer r.Close()
			data, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if want := "image1 6\n[7]\n\n"; string(data) != want {
				t.Fatalf("sidecar = %q, want %q", data, want)
			}
		})
	}
}

func TestRawSidecarRequiresDump(t *testing.T) {
	s := RawSidecar{Dir: t.TempDir()}
	if err := s.WriteSidecar(0, "image0", frame.Item{}, &textFrame{body: "x"}); err == nil {
		t.Fatal("expected error without dump function")
	}
}

func TestNewIDUnique(t *testing.T) {
	if a, b := NewID(), NewID(); a == b || len(a) != 36 {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
