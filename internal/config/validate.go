package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateControl(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SessionRoot) == "" {
		return errors.New("paths.session_root must be set")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must be set")
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	if err := validateURL("camera.stream_url", c.Camera.StreamURL, "rtsp", "rtsps", "http", "https", "file"); err != nil {
		return err
	}
	if err := validateURL("sonar.stream_url", c.Sonar.StreamURL, "rtsp", "rtsps", "http", "https", "file"); err != nil {
		return err
	}
	if err := validateURL("sonar.api_url", c.Sonar.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.Sonar.RangeMeters <= 0 {
		return errors.New("sonar.range_meters must be positive")
	}
	if c.Camera.DebugDevice < 0 || c.Sonar.DebugDevice < 0 {
		return errors.New("debug_device must be a non-negative device index")
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, scheme := range schemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			if parsed.Host == "" && scheme != "file" {
				return fmt.Errorf("%s: missing host in %q", field, raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported scheme %q (want one of %s)", field, parsed.Scheme, strings.Join(schemes, ", "))
}

func (c *Config) validateControl() error {
	if c.Control.RequestTimeoutMS < c.Control.ConnectTimeoutMS {
		return errors.New("control.request_timeout_ms must be at least control.connect_timeout_ms")
	}
	if c.Control.DisableAttempts > 10 {
		return errors.New("control.disable_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
