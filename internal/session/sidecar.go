package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"fieldrec/internal/frame"
)

// DumpFunc writes a textual rendering of f to w.
type DumpFunc func(w io.Writer, f frame.Frame) error

// RawSidecar writes raw/frame{i}.txt files holding the "image{i} {ts}" header
// followed by the frame matrix rendered by Dump. With Compress set the files
// are zstd streams named frame{i}.txt.zst.
type RawSidecar struct {
	Dir      string
	Compress bool
	Dump     DumpFunc
}

// Path returns the sidecar path for index.
func (s RawSidecar) Path(index int) string {
	name := fmt.Sprintf("frame%d.txt", index)
	if s.Compress {
		name += ".zst"
	}
	return filepath.Join(s.Dir, name)
}

// WriteSidecar writes the sidecar for one persisted frame.
func (s RawSidecar) WriteSidecar(index int, name string, item frame.Item, f frame.Frame) (err error) {
	if s.Dump == nil {
		return fmt.Errorf("raw sidecar: no dump function")
	}
	file, err := os.Create(s.Path(index))
	if err != nil {
		return fmt.Errorf("create raw sidecar: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var w io.Writer = file
	var enc *zstd.Encoder
	if s.Compress {
		enc, err = zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return fmt.Errorf("raw sidecar encoder: %w", err)
		}
		w = enc
		defer func() {
			if enc != nil {
				_ = enc.Close()
			}
		}()
	}
	buf := bufio.NewWriter(w)

	if _, err = fmt.Fprintf(buf, "%s %d\n", name, item.Timestamp); err != nil {
		return err
	}
	if err = s.Dump(buf, f); err != nil {
		return fmt.Errorf("dump frame: %w", err)
	}
	if _, err = io.WriteString(buf, "\n\n"); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return err
	}
	if enc != nil {
		cerr := enc.Close()
		enc = nil
		if cerr != nil {
			return fmt.Errorf("finish raw sidecar: %w", cerr)
		}
	}
	return nil
}

// OpenSidecar returns a reader over a sidecar file, transparently
// decompressing .zst files.
func OpenSidecar(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) != ".zst" {
		return file, nil
	}
	dec, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("raw sidecar decoder: %w", err)
	}
	return &zstdReadCloser{dec: dec, file: file}, nil
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) { return r.dec.Read(p) }

func (r *zstdReadCloser) Close() error {
	r.dec.Close()
	return r.file.Close()
}
