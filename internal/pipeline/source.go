package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fieldrec/internal/frame"
	"fieldrec/internal/logging"
)

const (
	// DefaultStallTimeout is how long the source tolerates failed reads
	// before declaring the stream dead.
	DefaultStallTimeout = 5 * time.Second
	// DefaultPreviewStride forwards every 2nd good frame to the preview branch.
	DefaultPreviewStride = 2
)

// Capture is an opened capture capability.
type Capture interface {
	// Read returns the next frame. ok is false on a failed or timed out read.
	Read() (f frame.Frame, ok bool)
	Close() error
}

// OpenFunc opens the capture capability.
type OpenFunc func() (Capture, error)

// Transformer produces a derived frame. Apply may return its input unchanged;
// otherwise the returned frame is a new value owned by the caller and the
// input remains owned by the caller as well.
type Transformer interface {
	Apply(frame.Frame) (frame.Frame, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(frame.Frame) (frame.Frame, error)

// Apply calls fn(f).
func (fn TransformFunc) Apply(f frame.Frame) (frame.Frame, error) { return fn(f) }

// Identity returns every frame unchanged.
var Identity Transformer = TransformFunc(func(f frame.Frame) (frame.Frame, error) { return f, nil })

// Publisher receives frames for the lossy preview branch. Publish must not
// retain f after returning.
type Publisher interface {
	Publish(f frame.Frame)
}

// SourceOptions tunes the source loop.
type SourceOptions struct {
	// RecordEvery enqueues every Nth good frame.
	RecordEvery int
	// PreviewStride forwards every Nth good frame to the publisher.
	PreviewStride int
	// StallTimeout bounds the time since the last good frame.
	StallTimeout time.Duration
	// Prepare runs on frames selected for recording before they are enqueued.
	Prepare Transformer
	// Now is the clock used for stall detection and timestamps.
	Now func() time.Time
}

// SourceStats summarizes a source loop run.
type SourceStats struct {
	GoodFrames uint64
	BadReads   uint64
	Previewed  uint64
	Enqueued   uint64
}

// Source is the frame acquisition loop.
type Source struct {
	open    OpenFunc
	queue   *Queue
	state   *RunState
	preview Publisher
	opts    SourceOptions
	logger  *slog.Logger

	good      atomic.Uint64
	bad       atomic.Uint64
	previewed atomic.Uint64
	enqueued  atomic.Uint64
}

// NewSource wires a source loop. preview may be nil.
func NewSource(open OpenFunc, queue *Queue, state *RunState, preview Publisher, opts SourceOptions, logger *slog.Logger) *Source {
	if opts.RecordEvery <= 0 {
		opts.RecordEvery = 1
	}
	if opts.PreviewStride <= 0 {
		opts.PreviewStride = DefaultPreviewStride
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.Prepare == nil {
		opts.Prepare = Identity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Source{
		open:    open,
		queue:   queue,
		state:   state,
		preview: preview,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "source"),
	}
}

// Run opens the capture capability and loops until shutdown is requested or
// the stream stalls. An open failure requests shutdown immediately so the
// persister never waits on a source that will not produce.
func (s *Source) Run() error {
	capture, err := s.open()
	if err != nil {
		s.logger.Error("capture source failed to open",
			logging.Error(err),
			logging.String(logging.FieldEventType, "source_open_failed"),
			logging.String(logging.FieldErrorHint, "check the stream URL or device index and sensor power"),
		)
		s.state.RequestShutdown(ReasonSourceOpenFailed)
		return fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	defer func() {
		if cerr := capture.Close(); cerr != nil {
			s.logger.Debug("capture close failed", logging.Error(cerr))
		}
	}()

	s.logger.Info("capture source opened",
		logging.String(logging.FieldEventType, "source_opened"),
		logging.Int("record_every", s.opts.RecordEvery),
		logging.Duration("stall_timeout", s.opts.StallTimeout),
	)

	lastGood := s.opts.Now()
	var counter uint64
	for s.state.Running() {
		f, ok := capture.Read()
		now := s.opts.Now()

		if !ok || f == nil || f.Empty() {
			if f != nil {
				_ = f.Close()
			}
			s.bad.Add(1)
			if elapsed := now.Sub(lastGood); elapsed > s.opts.StallTimeout {
				s.logger.Error("stream lost or frozen; stopping",
					logging.Duration("since_last_frame", elapsed),
					logging.String(logging.FieldEventType, "stream_stalled"),
					logging.String(logging.FieldErrorHint, "check network link to the sensor"),
				)
				s.state.RequestShutdown(ReasonStreamStalled)
				return ErrStreamStalled
			}
			continue
		}
		lastGood = now
		s.good.Add(1)

		if counter%uint64(s.opts.PreviewStride) == 0 && s.preview != nil {
			s.preview.Publish(f)
			s.previewed.Add(1)
		}
		counter++

		if counter%uint64(s.opts.RecordEvery) != 0 {
			_ = f.Close()
			continue
		}
		s.enqueue(f, frame.Millis(now), counter)
	}
	return nil
}

// Stats returns counters accumulated so far.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		GoodFrames: s.good.Load(),
		BadReads:   s.bad.Load(),
		Previewed:  s.previewed.Load(),
		Enqueued:   s.enqueued.Load(),
	}
}

func (s *Source) enqueue(f frame.Frame, timestamp int64, seq uint64) {
	prepared, err := s.opts.Prepare.Apply(f)
	if prepared != f {
		_ = f.Close()
	}
	if err != nil || prepared == nil || prepared.Empty() {
		if prepared != nil {
			_ = prepared.Close()
		}
		logging.WarnWithContext(s.logger, "frame preparation failed; frame skipped", "frame_prepare_failed",
			logging.Error(err),
			logging.Uint64("seq", seq),
			logging.String(logging.FieldImpact, "one recorded frame lost"),
		)
		return
	}
	s.queue.Push(frame.Item{Frame: prepared, Timestamp: timestamp, Seq: seq})
	s.enqueued.Add(1)
}
