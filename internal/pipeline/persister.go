package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"fieldrec/internal/frame"
	"fieldrec/internal/logging"
)

// ImageWriter persists one frame to path.
type ImageWriter interface {
	WriteImage(path string, f frame.Frame) error
}

// TimestampSink records the name/timestamp row for each persisted frame.
type TimestampSink interface {
	Record(name string, timestamp int64) error
	Close() error
}

// SidecarWriter stores an optional per-frame raw companion file.
type SidecarWriter interface {
	WriteSidecar(index int, name string, item frame.Item, f frame.Frame) error
}

// PersisterOptions configures where and how frames are written.
type PersisterOptions struct {
	ImagesDir string
	// Ext is the image file extension without the dot.
	Ext string
	// Correct runs on each dequeued frame before it is written.
	Correct Transformer
	Writer  ImageWriter
	Log     TimestampSink
	Sidecar SidecarWriter
}

// PersisterStats summarizes a persister run.
type PersisterStats struct {
	Dequeued      uint64
	Written       uint64
	WriteFailures uint64
}

// Persister drains the queue to disk in arrival order.
type Persister struct {
	queue  *Queue
	state  *RunState
	opts   PersisterOptions
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error

	dequeued atomic.Uint64
	written  atomic.Uint64
	failures atomic.Uint64
}

// NewPersister wires a persister. Writer and Log are required.
func NewPersister(queue *Queue, state *RunState, opts PersisterOptions, logger *slog.Logger) (*Persister, error) {
	if opts.Writer == nil {
		return nil, fmt.Errorf("persister: image writer is required")
	}
	if opts.Log == nil {
		return nil, fmt.Errorf("persister: timestamp log is required")
	}
	if opts.Correct == nil {
		opts.Correct = Identity
	}
	if opts.Ext == "" {
		opts.Ext = "jpg"
	}
	return &Persister{
		queue:  queue,
		state:  state,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "persister"),
	}, nil
}

// Run consumes items while the run is active or items remain buffered, then
// closes the timestamp log. Once shutdown is requested every item already in
// the queue is still written before Run returns.
func (p *Persister) Run() error {
	defer p.closeLog()

	p.logger.Info("persister started",
		logging.String(logging.FieldEventType, "persister_started"),
		logging.String("images_dir", p.opts.ImagesDir),
	)

	index := 0
	for p.state.Running() || p.queue.Len() > 0 {
		item, ok := p.queue.Pop()
		if !ok {
			continue
		}
		p.dequeued.Add(1)
		p.persist(index, item)
		index++
	}

	stats := p.Stats()
	p.logger.Info("persister finished",
		logging.String(logging.FieldEventType, "persister_finished"),
		logging.Uint64("frames_written", stats.Written),
		logging.Uint64("write_failures", stats.WriteFailures),
	)
	return p.closeErr
}

// Stats returns counters accumulated so far.
func (p *Persister) Stats() PersisterStats {
	return PersisterStats{
		Dequeued:      p.dequeued.Load(),
		Written:       p.written.Load(),
		WriteFailures: p.failures.Load(),
	}
}

func (p *Persister) persist(index int, item frame.Item) {
	defer item.Release()
	name := fmt.Sprintf("image%d", index)
	logger := p.logger.With(logging.Int(logging.FieldFrameIndex, index))

	out := item.Frame
	if item.Valid() {
		corrected, err := p.opts.Correct.Apply(item.Frame)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "frame correction failed; writing uncorrected frame", "frame_correct_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame stored without geometric correction"),
			)
		case corrected != nil && corrected != item.Frame:
			out = corrected
			defer func() { _ = corrected.Close() }()
		}

		path := filepath.Join(p.opts.ImagesDir, name+"."+p.opts.Ext)
		if err := p.opts.Writer.WriteImage(path, out); err != nil {
			p.failures.Add(1)
			logging.ErrorWithContext(logger, "frame write failed", "frame_write_failed",
				logging.Error(err),
				logging.String("path", path),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the session root"),
			)
		} else {
			p.written.Add(1)
		}
	} else {
		p.failures.Add(1)
		logging.WarnWithContext(logger, "dequeued empty frame", "frame_empty",
			logging.String(logging.FieldImpact, "image file missing for this index"),
		)
	}

	if p.opts.Sidecar != nil && out != nil && !out.Empty() {
		if err := p.opts.Sidecar.WriteSidecar(index, name, item, out); err != nil {
			logging.WarnWithContext(logger, "raw sidecar write failed", "sidecar_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "raw companion file missing for this index"),
			)
		}
	}

	if err := p.opts.Log.Record(name, item.Timestamp); err != nil {
		logging.ErrorWithContext(logger, "timestamp log write failed", "timestamp_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space on the session root"),
		)
	}
}

func (p *Persister) closeLog() {
	p.closeOnce.Do(func() {
		if err := p.opts.Log.Close(); err != nil {
			p.closeErr = fmt.Errorf("close timestamp log: %w", err)
			p.logger.Error("timestamp log close failed", logging.Error(err))
		}
	})
}
