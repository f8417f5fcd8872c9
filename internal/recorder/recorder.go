package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"fieldrec/internal/calibration"
	"fieldrec/internal/catalog"
	"fieldrec/internal/config"
	"fieldrec/internal/control"
	"fieldrec/internal/devwatch"
	"fieldrec/internal/logging"
	"fieldrec/internal/pipeline"
	"fieldrec/internal/preflight"
	"fieldrec/internal/preview"
	"fieldrec/internal/sensor"
	"fieldrec/internal/session"
	"fieldrec/internal/watchdog"
)

const lockFileName = ".fieldrec.lock"

// Options selects what a run records.
type Options struct {
	Sensor string
	// OutputRoot overrides paths.session_root.
	OutputRoot string
	Debug      bool
	// LogLevel overrides logging.level.
	LogLevel string
	// Diagnostic adds a debug-level JSON log next to the run log.
	Diagnostic bool
}

// SenderFactory opens the preview datagram sender.
type SenderFactory func(host string, port int) (preview.Sender, error)

// Summary describes a finished run.
type Summary struct {
	SessionID string
	Sensor    string
	Paths     session.Paths
	Result    pipeline.Result
	LogPath   string
}

// Recorder runs one sensor recording.
type Recorder struct {
	cfg   *config.Config
	opts  Options
	media Media

	stdin      io.Reader
	logger     *slog.Logger
	newSender  SenderFactory
	httpClient *http.Client
	sleeper    func(time.Duration)
	now        func() time.Time
	signals    []os.Signal
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithStdin sets the liveness stream. A nil reader disables the watchdog.
func WithStdin(r io.Reader) Option {
	return func(rec *Recorder) { rec.stdin = r }
}

// WithLogger uses logger instead of building the run log.
func WithLogger(logger *slog.Logger) Option {
	return func(rec *Recorder) { rec.logger = logger }
}

// WithSenderFactory overrides how the preview sender is opened.
func WithSenderFactory(factory SenderFactory) Option {
	return func(rec *Recorder) {
		if factory != nil {
			rec.newSender = factory
		}
	}
}

// WithHTTPClient overrides the control-plane HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(rec *Recorder) { rec.httpClient = client }
}

// WithSleeper overrides the control-plane retry sleep.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(rec *Recorder) { rec.sleeper = sleeper }
}

// WithClock overrides the source loop clock.
func WithClock(now func() time.Time) Option {
	return func(rec *Recorder) {
		if now != nil {
			rec.now = now
		}
	}
}

// New builds a recorder.
func New(cfg *config.Config, opts Options, media Media, extra ...Option) *Recorder {
	rec := &Recorder{
		cfg:   cfg,
		opts:  opts,
		media: media,
		stdin: os.Stdin,
		newSender: func(host string, port int) (preview.Sender, error) {
			return preview.NewUDPSender(host, port)
		},
		now:     time.Now,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range extra {
		opt(rec)
	}
	return rec
}

// Run records until the run stops and returns once the source and persister
// have been joined and the sensor has been disabled.
func (r *Recorder) Run(ctx context.Context) (Summary, error) {
	if r.cfg == nil {
		return Summary{}, fmt.Errorf("%w: config is required", ErrUsage)
	}
	profile, err := sensor.Lookup(r.opts.Sensor)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if r.media.Open == nil || r.media.Writer == nil {
		return Summary{}, fmt.Errorf("%w: capture and image writer capabilities are required", ErrStartup)
	}

	root := r.opts.OutputRoot
	if root == "" {
		root = r.cfg.Paths.SessionRoot
	} else if root, err = config.ExpandPath(root); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Summary{}, fmt.Errorf("%w: create session root: %w", ErrStartup, err)
	}
	if check := preflight.CheckDirectoryAccess("Session root", root); !check.Passed {
		return Summary{}, fmt.Errorf("%w: %s", ErrStartup, check.Detail)
	}

	paths, err := session.NewPaths(root, profile.Dir, profile.RawSidecar)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := paths.Ensure(); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	summary := Summary{SessionID: session.NewID(), Sensor: string(profile.Kind), Paths: paths}

	logger, logPath, err := r.buildLogger(profile, summary.SessionID)
	if err != nil {
		return summary, fmt.Errorf("%w: init logger: %w", ErrStartup, err)
	}
	summary.LogPath = logPath

	lock := flock.New(filepath.Join(paths.SensorDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("%w: acquire lock: %w", ErrStartup, err)
	}
	if !locked {
		logging.ErrorWithContext(logger, "sensor directory already in use", "recorder_locked",
			logging.String("dir", paths.SensorDir),
			logging.String(logging.FieldErrorHint, "stop the other recorder or choose another --out"),
		)
		return summary, fmt.Errorf("%w: %s", ErrLocked, paths.SensorDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release recorder lock", logging.Error(err))
		}
	}()

	logger.Info("recording starting",
		logging.String(logging.FieldEventType, "recording_starting"),
		logging.String("sensor_dir", paths.SensorDir),
		logging.Bool("debug", r.opts.Debug),
		logging.Int("record_every", profile.RecordEvery),
		logging.Int("preview_port", profile.PreviewPort),
	)

	tsLog, err := session.OpenTimestampLog(paths.Timestamps)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	correct := r.media.correct(profile, r.loadCalibration(profile, logger))
	defer closeIfCloser(correct)
	prepare := r.media.prepare(profile)
	defer closeIfCloser(prepare)

	var sidecar pipeline.SidecarWriter
	if profile.RawSidecar && r.media.Dump != nil {
		sidecar = session.RawSidecar{Dir: paths.Raw, Compress: r.cfg.Sonar.CompressRaw, Dump: r.media.Dump}
	}

	state := pipeline.NewRunState()
	queue := pipeline.NewQueue(pipeline.DefaultQueueCapacity, state)
	persister, err := pipeline.NewPersister(queue, state, pipeline.PersisterOptions{
		ImagesDir: paths.Images,
		Ext:       "jpg",
		Correct:   correct,
		Writer:    r.media.Writer,
		Log:       tsLog,
		Sidecar:   sidecar,
	}, logger)
	if err != nil {
		_ = tsLog.Close()
		return summary, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	store := r.openCatalog(ctx, logger, summary, root)
	if store != nil {
		defer store.Close()
	}

	plane := r.controlPlane(profile, logger)
	if err := plane.Start(ctx, r.cfg.Sonar.RangeMeters); err != nil {
		logger.Warn("sensor start incomplete; recording anyway",
			logging.Error(err),
			logging.String(logging.FieldEventType, "control_start_incomplete"),
		)
	}

	publisher := r.openPreview(profile, logger)
	if publisher != nil {
		defer publisher.Close()
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, r.signals...)
	defer stopSignals()
	go func() {
		select {
		case <-sigCtx.Done():
			state.RequestShutdown(pipeline.ReasonSignal)
		case <-state.Done():
		}
	}()

	if r.stdin != nil {
		monitor := watchdog.New(r.stdin, state, plane, func(ctx context.Context) {
			_ = plane.DisableWithRetry(ctx)
		}, logger)
		go monitor.Run(ctx)
	}

	src := profile.Source(r.cfg, r.opts.Debug)
	if src.UseDevice && r.cfg.Capture.WatchDevice {
		watcher := devwatch.New(devwatch.DevicePath(src.Device), func(string) {
			state.RequestShutdown(pipeline.ReasonDeviceRemoved)
		}, logger)
		if err := watcher.Start(ctx); err == nil {
			defer watcher.Stop()
		}
	}

	var pub pipeline.Publisher
	if publisher != nil {
		pub = publisher
	}
	source := pipeline.NewSource(r.media.Open(src, logger), queue, state, pub, pipeline.SourceOptions{
		RecordEvery: profile.RecordEvery,
		Prepare:     prepare,
		Now:         r.now,
	}, logger)

	summary.Result = pipeline.Run(source, persister, queue, state)

	if summary.Result.Reason != pipeline.ReasonNone {
		logger.Info("run stopped",
			logging.String(logging.FieldEventType, "run_stopped"),
			logging.String(logging.FieldStopReason, string(summary.Result.Reason)),
		)
	}
	// The watchdog may already have disabled the sensor; a second disable is
	// a no-op at the device.
	_ = plane.DisableWithRetry(context.WithoutCancel(ctx))

	r.finishCatalog(ctx, logger, store, summary)
	r.logSummary(logger, summary, publisher)

	if errors.Is(summary.Result.SourceErr, pipeline.ErrSourceOpen) {
		return summary, fmt.Errorf("%w: %w", ErrStartup, summary.Result.SourceErr)
	}
	return summary, nil
}

func (r *Recorder) buildLogger(profile sensor.Profile, sessionID string) (*slog.Logger, string, error) {
	if r.logger != nil {
		return r.logger.With(
			logging.String(logging.FieldSensor, string(profile.Kind)),
			logging.String(logging.FieldSessionID, sessionID),
		), "", nil
	}

	level := r.cfg.Logging.Level
	if r.opts.LogLevel != "" {
		level = r.opts.LogLevel
	}
	logPath := r.cfg.RunLogPath(string(profile.Kind), sessionID)
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      r.cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
		Sensor:      string(profile.Kind),
		SessionID:   sessionID,
	})
	if err != nil {
		return nil, "", err
	}

	if r.opts.Diagnostic {
		debugPath := filepath.Join(r.cfg.Paths.LogDir, "debug", fmt.Sprintf("fieldrec-%s-%s.jsonl", profile.Kind, sessionID))
		handler, err := logging.NewDiagnosticHandler(debugPath, string(profile.Kind), sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize diagnostic log: %v\n", err)
		} else {
			logger = logging.TeeLogger(logger, handler)
		}
	}

	logging.CleanupOldLogs(logger, r.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: r.cfg.Paths.LogDir, Pattern: "fieldrec-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(r.cfg.Paths.LogDir, "debug"), Pattern: "fieldrec-*.jsonl"},
	)
	return logger, logPath, nil
}

func (r *Recorder) loadCalibration(profile sensor.Profile, logger *slog.Logger) calibration.Calibration {
	if !profile.Undistort {
		return calibration.Identity()
	}
	path := r.cfg.Paths.CalibrationFile
	cal, found, err := calibration.Load(path, parentFallback(path))
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "calibration unreadable; frames stored uncorrected", "calibration_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or remove paths.calibration_file"),
			logging.String(logging.FieldImpact, "lens distortion is not removed"),
		)
	case !found:
		logger.Info("no calibration file found; using identity calibration",
			logging.String(logging.FieldEventType, "calibration_identity"),
			logging.String("path", path),
		)
	default:
		logger.Info("calibration loaded",
			logging.String(logging.FieldEventType, "calibration_loaded"),
			logging.String("path", cal.Source),
		)
	}
	return cal
}

// parentFallback returns the same relative location one directory further
// up, so config/<file> is also found from a build directory.
func parentFallback(path string) string {
	if path == "" {
		return ""
	}
	dir := filepath.Dir(path)
	return filepath.Join(filepath.Dir(dir), "..", filepath.Base(dir), filepath.Base(path))
}

func (r *Recorder) controlPlane(profile sensor.Profile, logger *slog.Logger) control.Plane {
	baseURL := profile.ControlURL(r.cfg, r.opts.Debug)
	if baseURL == "" {
		return control.Noop{}
	}
	return control.NewClient(control.Options{
		BaseURL:         baseURL,
		ConnectTimeout:  r.cfg.ConnectTimeout(),
		RequestTimeout:  r.cfg.RequestTimeout(),
		DisableAttempts: r.cfg.Control.DisableAttempts,
		RetryDelay:      r.cfg.RetryDelay(),
	}, logger, control.WithHTTPClient(r.httpClient), control.WithSleeper(r.sleeper))
}

func (r *Recorder) openPreview(profile sensor.Profile, logger *slog.Logger) *preview.Publisher {
	if r.media.Encoder == nil {
		return nil
	}
	sender, err := r.newSender(r.cfg.Preview.Host, profile.PreviewPort)
	if err != nil {
		logging.WarnWithContext(logger, "preview sender unavailable", "preview_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no live preview for this run"),
		)
		return nil
	}
	return preview.NewPublisher(r.media.Encoder, sender, logger)
}

func (r *Recorder) openCatalog(ctx context.Context, logger *slog.Logger, summary Summary, root string) *catalog.Store {
	path := r.cfg.Paths.CatalogPath
	if path == "" {
		return nil
	}
	store, err := catalog.Open(path)
	if err != nil {
		logging.WarnWithContext(logger, "session catalog unavailable", "catalog_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in fieldrec sessions"),
		)
		return nil
	}
	err = store.Begin(ctx, catalog.Session{
		ID:     summary.SessionID,
		Sensor: summary.Sensor,
		Root:   root,
		Debug:  r.opts.Debug,
	})
	if err != nil {
		logging.WarnWithContext(logger, "session catalog insert failed", "catalog_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in fieldrec sessions"),
		)
		_ = store.Close()
		return nil
	}
	return store
}

func (r *Recorder) finishCatalog(ctx context.Context, logger *slog.Logger, store *catalog.Store, summary Summary) {
	if store == nil {
		return
	}
	res := summary.Result
	err := store.Finish(context.WithoutCancel(ctx), summary.SessionID, catalog.Summary{
		FramesWritten: res.Persister.Written,
		FramesDropped: res.Dropped,
		WriteFailures: res.Persister.WriteFailures,
		StopReason:    string(res.Reason),
	})
	if err != nil {
		logger.Warn("session catalog update failed", logging.Error(err))
	}
}

func (r *Recorder) logSummary(logger *slog.Logger, summary Summary, publisher *preview.Publisher) {
	res := summary.Result
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "recording_finished"),
		logging.String(logging.FieldStopReason, string(res.Reason)),
		logging.Uint64("good_frames", res.Source.GoodFrames),
		logging.Uint64("bad_reads", res.Source.BadReads),
		logging.Uint64("enqueued", res.Source.Enqueued),
		logging.Uint64("frames_written", res.Persister.Written),
		logging.Uint64("write_failures", res.Persister.WriteFailures),
		logging.Uint64("frames_dropped", res.Dropped),
	}
	if publisher != nil {
		stats := publisher.Stats()
		attrs = append(attrs,
			logging.Uint64("previews_sent", stats.Sent),
			logging.Uint64("previews_oversize", stats.Oversize),
		)
	}
	logger.Info("recording finished", logging.Args(attrs...)...)
}
