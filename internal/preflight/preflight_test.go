package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldrec/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCalibration(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "calib.yml")
	testsupport.WriteFile(t, valid, `%YAML:1.0
---
cameraMatrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 800., 0., 425., 0., 800., 240., 0., 0., 1. ]
distCoeffs: !!opencv-matrix
   rows: 1
   cols: 5
   dt: d
   data: [ -0.1, 0.01, 0., 0., 0. ]
`)
	broken := filepath.Join(dir, "broken.yml")
	testsupport.WriteFile(t, broken, "cameraMatrix: [1, 2\n")

	tests := []struct {
		name   string
		path   string
		passed bool
	}{
		{name: "unset", path: "", passed: true},
		{name: "missing", path: filepath.Join(dir, "absent.yml"), passed: true},
		{name: "valid", path: valid, passed: true},
		{name: "broken", path: broken, passed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckCalibration(tt.path)
			if got.Passed != tt.passed {
				t.Fatalf("Passed = %v, detail %q", got.Passed, got.Detail)
			}
		})
	}
}

func TestCheckEndpoint_Reachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	result := CheckEndpoint(context.Background(), "Sonar control", "http://"+ln.Addr().String()+"/api/v2", time.Second)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	result := CheckEndpoint(context.Background(), "Sonar control", "http://"+addr, time.Second)
	if result.Passed {
		t.Fatal("expected failure for closed port")
	}
}

func TestDialAddress(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "rtsp://192.168.2.54/stream", want: "192.168.2.54:554"},
		{raw: "rtsp://192.168.2.42:8554/raw", want: "192.168.2.42:8554"},
		{raw: "http://host/api", want: "host:80"},
		{raw: "", wantErr: true},
		{raw: "udp://host/x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := dialAddress(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("dialAddress(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("dialAddress(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestRunAllAndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Control.ConnectTimeoutMS = 50
	if err := os.MkdirAll(cfg.Paths.SessionRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("session root should pass: %s", results[0].Detail)
	}
	if results[1].Passed {
		t.Fatal("log directory was never created and should fail")
	}
	for _, r := range Failed(results) {
		if r.Passed {
			t.Fatalf("Failed returned passing result %+v", r)
		}
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
