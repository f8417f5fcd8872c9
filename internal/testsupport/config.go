package testsupport

import (
	"path/filepath"
	"testing"

	"fieldrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Derived endpoints are filled in so the result validates without a Load.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SessionRoot = filepath.Join(base, "sessions")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.Paths.CalibrationFile = filepath.Join(base, "calib.yml")
	cfgVal.Sonar.StreamURL = "rtsp://127.0.0.1:8554/raw"
	cfgVal.Sonar.APIURL = "http://127.0.0.1:8000/api/v2"
	cfgVal.Control.RetryDelayMS = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSonarAPI points the sonar control plane at url, typically an httptest server.
func WithSonarAPI(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sonar.APIURL = url
	}
}

// WithCalibrationFile writes contents to the config's calibration path.
func WithCalibrationFile(contents string) ConfigOption {
	return func(b *configBuilder) {
		b.t.Helper()
		WriteFile(b.t, b.cfg.Paths.CalibrationFile, contents)
	}
}
