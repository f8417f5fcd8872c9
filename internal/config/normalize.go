package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePreview()
	c.normalizeSonar()
	c.normalizeControl()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SessionRoot) == "" {
		c.Paths.SessionRoot = defaultSessionRoot
	}
	if c.Paths.SessionRoot, err = expandPath(c.Paths.SessionRoot); err != nil {
		return fmt.Errorf("paths.session_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	c.Paths.CalibrationFile = strings.TrimSpace(c.Paths.CalibrationFile)
	if c.Paths.CalibrationFile != "" {
		if c.Paths.CalibrationFile, err = expandPath(c.Paths.CalibrationFile); err != nil {
			return fmt.Errorf("paths.calibration_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePreview() {
	c.Preview.Host = strings.TrimSpace(c.Preview.Host)
	if c.Preview.Host == "" {
		c.Preview.Host = defaultPreviewHost
	}
}

// normalizeSonar derives the stream and API URLs from the head address when
// they are not given explicitly. FIELDREC_SONAR_ADDRESS overrides the file.
func (c *Config) normalizeSonar() {
	if value, ok := os.LookupEnv("FIELDREC_SONAR_ADDRESS"); ok && strings.TrimSpace(value) != "" {
		c.Sonar.Address = value
	}
	c.Sonar.Address = strings.TrimSpace(c.Sonar.Address)
	if c.Sonar.Address == "" {
		c.Sonar.Address = defaultSonarAddress
	}
	c.Sonar.StreamURL = strings.TrimSpace(c.Sonar.StreamURL)
	if c.Sonar.StreamURL == "" {
		c.Sonar.StreamURL = "rtsp://" + net.JoinHostPort(c.Sonar.Address, strconv.Itoa(sonarStreamPort)) + "/raw"
	}
	c.Sonar.APIURL = strings.TrimRight(strings.TrimSpace(c.Sonar.APIURL), "/")
	if c.Sonar.APIURL == "" {
		c.Sonar.APIURL = "http://" + net.JoinHostPort(c.Sonar.Address, strconv.Itoa(sonarAPIPort)) + "/api/v2"
	}
	c.Camera.StreamURL = strings.TrimSpace(c.Camera.StreamURL)
	if c.Camera.StreamURL == "" {
		c.Camera.StreamURL = defaultCameraStreamURL
	}
}

func (c *Config) normalizeControl() {
	if c.Control.ConnectTimeoutMS <= 0 {
		c.Control.ConnectTimeoutMS = defaultConnectTimeoutMS
	}
	if c.Control.RequestTimeoutMS <= 0 {
		c.Control.RequestTimeoutMS = defaultRequestTimeoutMS
	}
	if c.Control.DisableAttempts <= 0 {
		c.Control.DisableAttempts = defaultDisableAttempts
	}
	if c.Control.RetryDelayMS < 0 {
		c.Control.RetryDelayMS = defaultRetryDelayMS
	}
	if c.Capture.ReadTimeoutMS <= 0 {
		c.Capture.ReadTimeoutMS = defaultReadTimeoutMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// RunLogPath returns the per-run log file for a sensor run.
func (c *Config) RunLogPath(sensor, runID string) string {
	return filepath.Join(c.Paths.LogDir, fmt.Sprintf("fieldrec-%s-%s.log", sensor, runID))
}
