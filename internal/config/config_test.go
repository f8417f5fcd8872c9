package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fieldrec/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndDerivesSonarURLs(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "fieldrec", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, "fieldrec", "sessions"); cfg.Paths.SessionRoot != want {
		t.Fatalf("session root = %q, want %q", cfg.Paths.SessionRoot, want)
	}
	if cfg.Sonar.StreamURL != "rtsp://192.168.2.42:8554/raw" {
		t.Fatalf("sonar stream url = %q", cfg.Sonar.StreamURL)
	}
	if cfg.Sonar.APIURL != "http://192.168.2.42:8000/api/v2" {
		t.Fatalf("sonar api url = %q", cfg.Sonar.APIURL)
	}
	if cfg.Camera.StreamURL != "rtsp://192.168.2.54:554/stream" {
		t.Fatalf("camera stream url = %q", cfg.Camera.StreamURL)
	}
	if cfg.Preview.Host != "127.0.0.1" {
		t.Fatalf("preview host = %q", cfg.Preview.Host)
	}
	if cfg.Control.DisableAttempts != 3 || cfg.RetryDelay().Milliseconds() != 500 {
		t.Fatalf("unexpected control defaults: %+v", cfg.Control)
	}
	if cfg.ConnectTimeout().Seconds() != 2 || cfg.RequestTimeout().Seconds() != 3 {
		t.Fatalf("unexpected control timeouts: %+v", cfg.Control)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldrec.toml")
	body := `
[paths]
session_root = "` + filepath.ToSlash(filepath.Join(dir, "out")) + `"

[sonar]
address = "10.0.0.9"
range_meters = 7.5
compress_raw = true

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.SessionRoot != filepath.Join(dir, "out") {
		t.Fatalf("session root = %q", cfg.Paths.SessionRoot)
	}
	if cfg.Sonar.APIURL != "http://10.0.0.9:8000/api/v2" || cfg.Sonar.StreamURL != "rtsp://10.0.0.9:8554/raw" {
		t.Fatalf("urls not derived from address: %q %q", cfg.Sonar.APIURL, cfg.Sonar.StreamURL)
	}
	if cfg.Sonar.RangeMeters != 7.5 || !cfg.Sonar.CompressRaw {
		t.Fatalf("sonar section not decoded: %+v", cfg.Sonar)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
	if got := cfg.RunLogPath("sonar", "abc"); got != filepath.Join(cfg.Paths.LogDir, "fieldrec-sonar-abc.log") {
		t.Fatalf("run log path = %q", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[sonar]\nrange = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSonarAddressEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FIELDREC_SONAR_ADDRESS", "172.16.0.5")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(cfg.Sonar.APIURL, "http://172.16.0.5:8000") {
		t.Fatalf("expected env address in api url, got %q", cfg.Sonar.APIURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Sonar.RangeMeters != 3.0 {
		t.Fatalf("sample range = %v, want 3.0", cfg.Sonar.RangeMeters)
	}
	if cfg.Control.DisableAttempts != 3 {
		t.Fatalf("sample disable attempts = %d", cfg.Control.DisableAttempts)
	}

	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	base, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty session root", func(c *config.Config) { c.Paths.SessionRoot = "" }},
		{"api url scheme", func(c *config.Config) { c.Sonar.APIURL = "ftp://192.168.2.42/api" }},
		{"stream url host", func(c *config.Config) { c.Camera.StreamURL = "rtsp:///stream" }},
		{"range", func(c *config.Config) { c.Sonar.RangeMeters = 0 }},
		{"negative device", func(c *config.Config) { c.Camera.DebugDevice = -1 }},
		{"timeouts inverted", func(c *config.Config) { c.Control.RequestTimeoutMS = 100 }},
		{"too many attempts", func(c *config.Config) { c.Control.DisableAttempts = 50 }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("loaded defaults should validate: %v", err)
	}
}
