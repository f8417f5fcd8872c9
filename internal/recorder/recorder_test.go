package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"fieldrec/internal/calibration"
	"fieldrec/internal/config"
	"fieldrec/internal/frame"
	"fieldrec/internal/logging"
	"fieldrec/internal/pipeline"
	"fieldrec/internal/preview"
	"fieldrec/internal/sensor"
	"fieldrec/internal/testsupport"
)

type testFrame struct {
	closed atomic.Bool
}

func (f *testFrame) Empty() bool  { return false }
func (f *testFrame) Close() error { f.closed.Store(true); return nil }

// testCapture yields good frames, then failed reads forever.
type testCapture struct {
	mu   sync.Mutex
	good int
}

func (c *testCapture) Read() (frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.good > 0 {
		c.good--
		return &testFrame{}, true
	}
	return nil, false
}

func (c *testCapture) Close() error { return nil }

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type recordingWriter struct {
	mu    sync.Mutex
	paths []string
}

func (w *recordingWriter) WriteImage(path string, _ frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths = append(w.paths, path)
	return nil
}

func (w *recordingWriter) written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

type closingTransformer struct {
	applied atomic.Int32
	closed  atomic.Bool
}

func (t *closingTransformer) Apply(f frame.Frame) (frame.Frame, error) {
	t.applied.Add(1)
	return f, nil
}

func (t *closingTransformer) Close() error {
	t.closed.Store(true)
	return nil
}

type staticEncoder struct{}

func (staticEncoder) Encode(frame.Frame) ([]byte, error) { return []byte("jpeg"), nil }

type countingSender struct {
	sent   atomic.Int32
	closed atomic.Bool
}

func (s *countingSender) Send([]byte) error { s.sent.Add(1); return nil }
func (s *countingSender) Close() error      { s.closed.Store(true); return nil }

// sonarHead records control-plane requests as "METHOD path body".
type sonarHead struct {
	mu       sync.Mutex
	requests []string
	status   int
}

func (h *sonarHead) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.requests = append(h.requests, r.Method+" "+r.URL.Path+" "+strings.TrimSpace(string(body)))
	status := h.status
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *sonarHead) count(substr string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.requests {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

type fixture struct {
	cfg     *config.Config
	head    *sonarHead
	capture *testCapture
	writer  *recordingWriter
	correct *closingTransformer
	sender  *countingSender
	media   Media
	opened  atomic.Int32
}

func newFixture(t *testing.T, goodFrames int, openErr error) *fixture {
	t.Helper()
	head := &sonarHead{}
	srv := httptest.NewServer(head)
	t.Cleanup(srv.Close)

	fx := &fixture{
		cfg:     testsupport.NewConfig(t, testsupport.WithSonarAPI(srv.URL)),
		head:    head,
		capture: &testCapture{good: goodFrames},
		writer:  &recordingWriter{},
		correct: &closingTransformer{},
		sender:  &countingSender{},
	}
	fx.media = Media{
		Open: func(sensor.Source, *slog.Logger) pipeline.OpenFunc {
			return func() (pipeline.Capture, error) {
				fx.opened.Add(1)
				if openErr != nil {
					return nil, openErr
				}
				return fx.capture, nil
			}
		},
		Correct: func(calibration.Calibration) pipeline.Transformer { return fx.correct },
		Writer:  fx.writer,
		Encoder: staticEncoder{},
	}
	return fx
}

func (fx *fixture) recorder(opts Options, stdin io.Reader, step time.Duration) *Recorder {
	clock := &stepClock{now: time.UnixMilli(1_700_000_000_000), step: step}
	return New(fx.cfg, opts, fx.media,
		WithStdin(stdin),
		WithLogger(logging.NewNop()),
		WithClock(clock.Now),
		WithSleeper(func(time.Duration) {}),
		WithSenderFactory(func(string, int) (preview.Sender, error) { return fx.sender, nil }),
	)
}

func TestRunCameraWritesDecimatedFrames(t *testing.T) {
	fx := newFixture(t, 9, nil)
	root := filepath.Join(t.TempDir(), "mission")

	summary, err := fx.recorder(Options{Sensor: "camera", OutputRoot: root}, nil, 100*time.Millisecond).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Reason != pipeline.ReasonStreamStalled {
		t.Fatalf("reason = %q, want stream_stalled", summary.Result.Reason)
	}

	written := fx.writer.written()
	if len(written) != 3 {
		t.Fatalf("expected 3 written frames, got %v", written)
	}
	for i, path := range written {
		want := filepath.Join(root, "camera_1", "images", "image"+string(rune('0'+i))+".jpg")
		if path != want {
			t.Fatalf("frame %d path = %s, want %s", i, path, want)
		}
	}
	lines := testsupport.ReadLines(t, filepath.Join(root, "camera_1", "timestamps.txt"))
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "image0 ") {
		t.Fatalf("unexpected timestamp log %v", lines)
	}

	if got := fx.sender.sent.Load(); got != 5 {
		t.Fatalf("previews sent = %d, want 5", got)
	}
	if !fx.sender.closed.Load() {
		t.Fatal("preview sender not closed")
	}
	if fx.correct.applied.Load() != 3 || !fx.correct.closed.Load() {
		t.Fatalf("correction applied %d times, closed=%v", fx.correct.applied.Load(), fx.correct.closed.Load())
	}
	if n := fx.head.count(""); n != 0 {
		t.Fatalf("camera must not use the control plane, saw %d requests", n)
	}
}

func TestRunSonarStallDisablesTransceiver(t *testing.T) {
	fx := newFixture(t, 0, nil)

	// Failed reads only; 100ms per clock read reaches the 5s threshold after
	// about six simulated seconds of polling.
	summary, err := fx.recorder(Options{Sensor: "sonar"}, nil, 100*time.Millisecond).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Reason != pipeline.ReasonStreamStalled {
		t.Fatalf("reason = %q, want stream_stalled", summary.Result.Reason)
	}
	if !errors.Is(summary.Result.SourceErr, pipeline.ErrStreamStalled) {
		t.Fatalf("source err = %v", summary.Result.SourceErr)
	}
	if fx.head.count("PUT /datastream") != 1 {
		t.Fatal("expected rtsp stream selection at startup")
	}
	if fx.head.count(`"power_state":"on"`) != 1 {
		t.Fatal("expected transceiver enable at startup")
	}
	if fx.head.count(`"power_state":"off"`) != 1 {
		t.Fatalf("expected one successful disable, requests: %v", fx.head.requests)
	}

	store := testsupport.MustOpenCatalog(t, fx.cfg)
	sessions, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != summary.SessionID || sessions[0].StopReason != "stream_stalled" {
		t.Fatalf("unexpected catalog rows %+v", sessions)
	}
}

func TestRunParentDisconnectDisablesTwice(t *testing.T) {
	fx := newFixture(t, 0, nil)

	// A frozen clock never stalls, so only the closed stdin can stop the run.
	summary, err := fx.recorder(Options{Sensor: "sonar"}, strings.NewReader(""), 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Reason != pipeline.ReasonParentDisconnected {
		t.Fatalf("reason = %q, want parent_disconnected", summary.Result.Reason)
	}
	// The watchdog's disable runs on its own goroutine and may land after Run.
	deadline := time.Now().Add(2 * time.Second)
	for fx.head.count(`"power_state":"off"`) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fx.head.count(`"power_state":"off"`); got != 2 {
		t.Fatalf("disable requests = %d, want 2 (watchdog and post-join)", got)
	}
}

func TestRunSignalStopsRun(t *testing.T) {
	fx := newFixture(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := fx.recorder(Options{Sensor: "sonar", Debug: true}, nil, 0).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Reason != pipeline.ReasonSignal {
		t.Fatalf("reason = %q, want signal", summary.Result.Reason)
	}
	if n := fx.head.count(""); n != 0 {
		t.Fatalf("debug runs must not use the control plane, saw %d requests", n)
	}
}

func TestRunDisableExhaustedStillFinishes(t *testing.T) {
	fx := newFixture(t, 0, nil)
	fx.head.status = http.StatusServiceUnavailable

	summary, err := fx.recorder(Options{Sensor: "sonar"}, nil, 100*time.Millisecond).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Result.Reason != pipeline.ReasonStreamStalled {
		t.Fatalf("reason = %q", summary.Result.Reason)
	}
	if got := fx.head.count(`"power_state":"off"`); got != 3 {
		t.Fatalf("disable attempts = %d, want 3", got)
	}
}

func TestRunOpenFailureIsStartupError(t *testing.T) {
	fx := newFixture(t, 0, errors.New("no such stream"))

	summary, err := fx.recorder(Options{Sensor: "sonar"}, nil, 0).Run(context.Background())
	if !errors.Is(err, ErrStartup) || !errors.Is(err, pipeline.ErrSourceOpen) {
		t.Fatalf("Run err = %v, want startup/source-open", err)
	}
	if ExitCode(err) != ExitStartup {
		t.Fatalf("ExitCode = %d", ExitCode(err))
	}
	if summary.Result.Reason != pipeline.ReasonSourceOpenFailed {
		t.Fatalf("reason = %q", summary.Result.Reason)
	}
	if fx.head.count(`"power_state":"off"`) != 1 {
		t.Fatal("disable must run even when the source never opened")
	}
}

func TestRunLocked(t *testing.T) {
	fx := newFixture(t, 0, nil)
	root := t.TempDir()
	dir := filepath.Join(root, "sonar")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(dir, lockFileName))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err := fx.recorder(Options{Sensor: "sonar", OutputRoot: root}, nil, 0).Run(context.Background())
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Run err = %v, want ErrLocked", err)
	}
	if fx.opened.Load() != 0 {
		t.Fatal("capture must not open while locked")
	}
}

func TestRunUnknownSensor(t *testing.T) {
	fx := newFixture(t, 0, nil)
	_, err := fx.recorder(Options{Sensor: "lidar"}, nil, 0).Run(context.Background())
	if !errors.Is(err, ErrUsage) || ExitCode(err) != ExitUsage {
		t.Fatalf("Run err = %v, want usage error", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{ErrUsage, ExitUsage},
		{ErrLocked, ExitStartup},
		{errors.New("boom"), ExitStartup},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParentFallback(t *testing.T) {
	got := parentFallback("/srv/app/build/config/panasonic_calib.yml")
	want := "/srv/app/config/panasonic_calib.yml"
	if got != want {
		t.Fatalf("parentFallback = %q, want %q", got, want)
	}
	if parentFallback("") != "" {
		t.Fatal("empty path should have no fallback")
	}
}
