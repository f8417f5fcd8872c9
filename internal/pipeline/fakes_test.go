package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fieldrec/internal/frame"
)

type fakeFrame struct {
	id     int
	empty  bool
	closed atomic.Int32
}

func (f *fakeFrame) Empty() bool { return f.empty }

func (f *fakeFrame) Close() error {
	f.closed.Add(1)
	return nil
}

// fakeClock advances by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// scriptedCapture replays reads; after the script it returns failed reads.
type scriptedCapture struct {
	mu     sync.Mutex
	script []*fakeFrame
	pos    int
	closed bool
}

func (c *scriptedCapture) Read() (frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.script) {
		return nil, false
	}
	f := c.script[c.pos]
	c.pos++
	if f == nil {
		return nil, false
	}
	return f, !f.empty
}

func (c *scriptedCapture) Close() error {
	c.closed = true
	return nil
}

func goodFrames(n int) []*fakeFrame {
	frames := make([]*fakeFrame, n)
	for i := range frames {
		frames[i] = &fakeFrame{id: i}
	}
	return frames
}

type recordingPublisher struct {
	ids []int
}

func (p *recordingPublisher) Publish(f frame.Frame) {
	p.ids = append(p.ids, f.(*fakeFrame).id)
}

type memoryWriter struct {
	mu     sync.Mutex
	paths  []string
	ids    []int
	failOn map[int]bool
	calls  int
	delay  time.Duration
}

func (w *memoryWriter) WriteImage(path string, f frame.Frame) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	call := w.calls
	w.calls++
	if w.failOn[call] {
		return errors.New("disk full")
	}
	w.paths = append(w.paths, path)
	w.ids = append(w.ids, f.(*fakeFrame).id)
	return nil
}

type memoryLog struct {
	mu     sync.Mutex
	rows   []string
	closes int
}

func (l *memoryLog) Record(name string, ts int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, fmt.Sprintf("%s %d", name, ts))
	return nil
}

func (l *memoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return nil
}

func (l *memoryLog) snapshot() ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.rows...), l.closes
}
