package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output, log, and catalog locations.
type Paths struct {
	SessionRoot     string `toml:"session_root"`
	LogDir          string `toml:"log_dir"`
	CatalogPath     string `toml:"catalog_path"`
	CalibrationFile string `toml:"calibration_file"`
}

// Preview contains the destination of preview datagrams. Ports are fixed per
// sensor; only the host is configurable.
type Preview struct {
	Host string `toml:"host"`
}

// Camera contains the live RTSP source and the local debug device.
type Camera struct {
	StreamURL   string `toml:"stream_url"`
	DebugDevice int    `toml:"debug_device"`
}

// Sonar contains the sonar head endpoints and recording options.
type Sonar struct {
	Address     string  `toml:"address"`
	StreamURL   string  `toml:"stream_url"`
	APIURL      string  `toml:"api_url"`
	RangeMeters float64 `toml:"range_meters"`
	CompressRaw bool    `toml:"compress_raw"`
	DebugDevice int     `toml:"debug_device"`
}

// Control contains control-plane request timing.
type Control struct {
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`
	RequestTimeoutMS int `toml:"request_timeout_ms"`
	DisableAttempts  int `toml:"disable_attempts"`
	RetryDelayMS     int `toml:"retry_delay_ms"`
}

// Capture contains capture-device options.
type Capture struct {
	ReadTimeoutMS int  `toml:"read_timeout_ms"`
	WatchDevice   bool `toml:"watch_device"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for fieldrec.
//
// Frame decimation, preview stride, queue capacity, stall threshold, and the
// preview geometry are fixed per sensor and deliberately absent here.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Preview Preview `toml:"preview"`
	Camera  Camera  `toml:"camera"`
	Sonar   Sonar   `toml:"sonar"`
	Control Control `toml:"control"`
	Capture Capture `toml:"capture"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the session root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionRoot, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.CatalogPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog directory %q: %w", dir, err)
		}
	}
	return nil
}

// ConnectTimeout returns the control-plane dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Control.ConnectTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the control-plane total request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Control.RequestTimeoutMS) * time.Millisecond
}

// RetryDelay returns the pause between disable attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Control.RetryDelayMS) * time.Millisecond
}

// ReadTimeout returns the capture read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Capture.ReadTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
