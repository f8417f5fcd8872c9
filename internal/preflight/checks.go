package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"fieldrec/internal/calibration"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"rtsp":  "554",
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCalibration verifies the lens calibration file parses. A missing file
// passes because recording falls back to the identity calibration.
func CheckCalibration(path string) Result {
	const name = "Calibration"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "not configured (identity)"}
	}
	cal, found, err := calibration.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !found {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s not found (identity)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d distortion coefficients)", cal.Source, len(cal.DistCoeffs))}
}

// CheckEndpoint verifies a TCP connection can be opened to the host and port
// of rawURL within timeout.
func CheckEndpoint(ctx context.Context, name, rawURL string, timeout time.Duration) Result {
	address, err := dialAddress(rawURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", address, summarizeDialError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", address)}
}

func dialAddress(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("missing url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %v", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	port := parsed.Port()
	if port == "" {
		port = defaultPorts[strings.ToLower(parsed.Scheme)]
	}
	if port == "" {
		return "", fmt.Errorf("invalid url %q: missing port", rawURL)
	}
	return net.JoinHostPort(host, port), nil
}

// summarizeDialError produces a human-readable summary for connection failures.
func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (sensor unreachable)"
	}
	if errors.Is(err, unix.ECONNREFUSED) {
		return "connection refused"
	}
	return err.Error()
}
