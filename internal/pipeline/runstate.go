package pipeline

import (
	"sync"
	"sync/atomic"
)

// StopReason names the trigger that moved a run from Running to Stopping.
type StopReason string

const (
	ReasonNone               StopReason = ""
	ReasonSignal             StopReason = "signal"
	ReasonParentDisconnected StopReason = "parent_disconnected"
	ReasonStreamStalled      StopReason = "stream_stalled"
	ReasonSourceOpenFailed   StopReason = "source_open_failed"
	ReasonDeviceRemoved      StopReason = "device_removed"
)

// RunState is the single shared run flag of a recorder process.
//
// The zero value is not usable; construct with NewRunState.
type RunState struct {
	stopping atomic.Bool
	once     sync.Once
	done     chan struct{}

	mu     sync.Mutex
	reason StopReason
	wakers []func()
}

// NewRunState returns a RunState in the Running state.
func NewRunState() *RunState {
	return &RunState{done: make(chan struct{})}
}

// Running reports whether shutdown has not yet been requested.
func (s *RunState) Running() bool {
	return !s.stopping.Load()
}

// Done is closed when shutdown is requested.
func (s *RunState) Done() <-chan struct{} {
	return s.done
}

// Reason returns the first recorded stop reason, or ReasonNone while running.
func (s *RunState) Reason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OnStop registers fn to be called once when shutdown is requested. If the
// run is already stopping, fn is called immediately.
func (s *RunState) OnStop(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		fn()
		return
	}
	s.wakers = append(s.wakers, fn)
	s.mu.Unlock()
}

// RequestShutdown moves the run to Stopping and wakes every registered
// waiter. It returns true only for the call that performed the transition;
// later calls are no-ops and do not overwrite the reason.
func (s *RunState) RequestShutdown(reason StopReason) bool {
	transitioned := false
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.stopping.Store(true)
		wakers := s.wakers
		s.wakers = nil
		s.mu.Unlock()

		close(s.done)
		for _, wake := range wakers {
			wake()
		}
		transitioned = true
	})
	return transitioned
}
