package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	imagesDirName     = "images"
	rawDirName        = "raw"
	timestampFileName = "timestamps.txt"
)

// Paths is the fixed directory layout for one sensor within a session root.
type Paths struct {
	Root       string
	SensorDir  string
	Images     string
	Raw        string
	Timestamps string
}

// NewPaths derives the layout for sensorDir below root. Raw is empty unless
// withRaw is set.
func NewPaths(root, sensorDir string, withRaw bool) (Paths, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Paths{}, fmt.Errorf("session root is empty")
	}
	if sensorDir == "" || strings.ContainsAny(sensorDir, `/\`) {
		return Paths{}, fmt.Errorf("invalid sensor directory %q", sensorDir)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve session root: %w", err)
	}
	dir := filepath.Join(abs, sensorDir)
	p := Paths{
		Root:       abs,
		SensorDir:  dir,
		Images:     filepath.Join(dir, imagesDirName),
		Timestamps: filepath.Join(dir, timestampFileName),
	}
	if withRaw {
		p.Raw = filepath.Join(dir, rawDirName)
	}
	return p, nil
}

// Ensure creates every directory in the layout.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Images, p.Raw} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ImagePath returns the image file for index with extension ext.
func (p Paths) ImagePath(index int, ext string) string {
	return filepath.Join(p.Images, fmt.Sprintf("image%d.%s", index, ext))
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}
