// Package sensor holds the fixed per-sensor recording profiles.
//
// Decimation, preview port, output directory and the pre/post transforms are
// properties of the sensor class rather than of a deployment, so they live
// here as constants instead of in the config file.
package sensor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fieldrec/internal/config"
)

// Kind names a sensor class.
type Kind string

const (
	Camera Kind = "camera"
	Sonar  Kind = "sonar"
)

// Size is a frame geometry. The zero value means "unchanged".
type Size struct {
	Width, Height int
}

// IsZero reports whether s requests no resize.
func (s Size) IsZero() bool { return s.Width <= 0 || s.Height <= 0 }

// DeviceMode requests a geometry and pixel format from a local debug device.
type DeviceMode struct {
	Size
	FPS    int
	FourCC string
}

// Profile is the fixed recording behavior of one sensor class.
type Profile struct {
	Kind Kind
	// Dir is the directory below the session root.
	Dir         string
	PreviewPort int
	RecordEvery int
	// Resize is applied to recorded frames before they are queued.
	Resize Size
	// Grayscale reduces recorded frames to one channel before they are queued.
	Grayscale bool
	// Undistort applies the lens calibration in the persister.
	Undistort bool
	// RawSidecar dumps each persisted frame as a text matrix under raw/.
	RawSidecar bool
	// Controlled sensors are powered through the HTTP control plane.
	Controlled bool
	// StreamBuffer bounds the RTSP backend buffer; zero leaves the default.
	StreamBuffer int
	Debug        DeviceMode
}

var profiles = map[Kind]Profile{
	Camera: {
		Kind:        Camera,
		Dir:         "camera_1",
		PreviewPort: 5001,
		RecordEvery: 3,
		Resize:      Size{Width: 850, Height: 480},
		Undistort:   true,
		Debug: DeviceMode{
			Size:   Size{Width: 1280, Height: 720},
			FPS:    30,
			FourCC: "MJPG",
		},
	},
	Sonar: {
		Kind:         Sonar,
		Dir:          "sonar",
		PreviewPort:  5002,
		RecordEvery:  1,
		Grayscale:    true,
		RawSidecar:   true,
		Controlled:   true,
		StreamBuffer: 1,
		Debug: DeviceMode{
			Size: Size{Width: 1280, Height: 720},
		},
	},
}

// Lookup returns the profile for name, case-insensitively.
func Lookup(name string) (Profile, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, fmt.Errorf("unknown sensor %q (expected one of %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the known sensor names in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for kind := range profiles {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

var titleCaser = cases.Title(language.English)

// DisplayName is the human-readable sensor name.
func DisplayName(kind string) string {
	return titleCaser.String(strings.ReplaceAll(kind, "_", " "))
}

// Source describes where frames come from for one run.
type Source struct {
	URL         string
	UseDevice   bool
	Device      int
	Mode        DeviceMode
	BufferSize  int
	ReadTimeout time.Duration
}

// Source resolves the capture source from cfg. Debug runs read the
// configured local device; live runs read the sensor stream.
func (p Profile) Source(cfg *config.Config, debug bool) Source {
	src := Source{ReadTimeout: cfg.ReadTimeout()}
	if debug {
		src.UseDevice = true
		src.Device = p.debugDevice(cfg)
		src.Mode = p.Debug
		return src
	}
	src.BufferSize = p.StreamBuffer
	switch p.Kind {
	case Sonar:
		src.URL = cfg.Sonar.StreamURL
	default:
		src.URL = cfg.Camera.StreamURL
	}
	return src
}

func (p Profile) debugDevice(cfg *config.Config) int {
	if p.Kind == Sonar {
		return cfg.Sonar.DebugDevice
	}
	return cfg.Camera.DebugDevice
}

// ControlURL returns the control-plane base URL, or "" when the run must not
// touch the control plane (uncontrolled sensor or debug mode).
func (p Profile) ControlURL(cfg *config.Config, debug bool) string {
	if !p.Controlled || debug {
		return ""
	}
	return cfg.Sonar.APIURL
}
