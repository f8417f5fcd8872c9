// Package watchdog detects the death of the supervising parent through the
// closure of an inherited stream, conventionally stdin.
//
// While the stream is open the parent may also send line commands. The only
// one understood today is "RANGE <meters>", which the console uses to change
// the sonar range mid-run.
package watchdog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"fieldrec/internal/logging"
	"fieldrec/internal/pipeline"
)

// maxLineBytes bounds one parent command line. Longer lines are discarded.
const maxLineBytes = 4096

// RangeSetter applies a new sensor range.
type RangeSetter interface {
	SetRange(ctx context.Context, rangeMeters float64) error
}

// Monitor reads the liveness stream until it ends.
type Monitor struct {
	input  io.Reader
	state  *pipeline.RunState
	ranger RangeSetter
	// OnDisconnect runs after the monitor itself requested shutdown.
	onDisconnect func(ctx context.Context)
	logger       *slog.Logger
}

// New builds a monitor. ranger and onDisconnect may be nil.
func New(input io.Reader, state *pipeline.RunState, ranger RangeSetter, onDisconnect func(ctx context.Context), logger *slog.Logger) *Monitor {
	return &Monitor{
		input:        input,
		state:        state,
		ranger:       ranger,
		onDisconnect: onDisconnect,
		logger:       logging.NewComponentLogger(logger, "watchdog"),
	}
}

// Run blocks until the stream reaches EOF or fails. If the run was still
// active at that point it requests shutdown and invokes the disconnect hook
// before returning. Run reports whether it performed the shutdown.
func (m *Monitor) Run(ctx context.Context) bool {
	scanner := bufio.NewScanner(m.input)
	scanner.Buffer(make([]byte, 0, 512), maxLineBytes)
	scanner.Split(m.splitLines(maxLineBytes))
	for scanner.Scan() {
		if m.state.Running() {
			m.handleLine(ctx, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Debug("liveness stream read failed", logging.Error(err))
	}

	if !m.state.RequestShutdown(pipeline.ReasonParentDisconnected) {
		return false
	}
	logging.WarnWithContext(m.logger, "parent disconnected; stopping", "parent_disconnected",
		logging.String(logging.FieldStopReason, string(pipeline.ReasonParentDisconnected)),
		logging.String(logging.FieldErrorHint, "check whether the supervising console exited"),
		logging.String(logging.FieldImpact, "recording stops after buffered frames are written"),
	)
	if m.onDisconnect != nil {
		m.onDisconnect(context.WithoutCancel(ctx))
	}
	return true
}

func (m *Monitor) handleLine(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch strings.ToUpper(fields[0]) {
	case "RANGE":
		meters, err := parseRange(fields)
		if err != nil {
			logging.WarnWithContext(m.logger, "ignoring malformed range command", "range_command_invalid",
				logging.String("line", strings.TrimSpace(line)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "sensor range unchanged"),
			)
			return
		}
		if m.ranger == nil {
			m.logger.Debug("range command ignored; sensor has no range", logging.Float64("range_m", meters))
			return
		}
		m.logger.Info("range change requested",
			logging.String(logging.FieldEventType, "range_change"),
			logging.Float64("range_m", meters),
		)
		_ = m.ranger.SetRange(ctx, meters)
	default:
		m.logger.Debug("ignoring unknown parent command", logging.String("line", strings.TrimSpace(line)))
	}
}

// splitLines is bufio.ScanLines with a length cap: a line that fills limit
// bytes without a newline is dropped through its terminating newline, so the
// scanner keeps reading instead of failing with bufio.ErrTooLong.
func (m *Monitor) splitLines(limit int) bufio.SplitFunc {
	skipping := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if skipping {
				skipping = false
				return i + 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
		if skipping {
			return len(data), nil, nil
		}
		if len(data) >= limit {
			skipping = true
			m.logger.Debug("discarding oversized parent command line", logging.Int("limit_bytes", limit))
			return len(data), nil, nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func parseRange(fields []string) (float64, error) {
	if len(fields) != 2 {
		return 0, errors.New("expected RANGE <meters>")
	}
	meters, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, err
	}
	if meters <= 0 || math.IsInf(meters, 0) || math.IsNaN(meters) {
		return 0, errors.New("range must be a positive number of meters")
	}
	return meters, nil
}
