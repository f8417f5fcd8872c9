package pipeline

import (
	"sync"
	"sync/atomic"

	"fieldrec/internal/frame"
)

// DefaultQueueCapacity bounds the number of frames buffered between the
// source loop and the persister.
const DefaultQueueCapacity = 1000

// Queue is a fixed-capacity FIFO with a drop-oldest overflow policy.
//
// Push never blocks. Pop blocks until an item is available or the RunState
// the queue was built with moves to Stopping.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []frame.Item
	head     int
	size     int
	state    *RunState
	dropped  atomic.Uint64
	enqueued atomic.Uint64
}

// NewQueue builds a queue bound to state. A non-positive capacity selects
// DefaultQueueCapacity.
func NewQueue(capacity int, state *RunState) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &Queue{
		buf:   make([]frame.Item, capacity),
		state: state,
	}
	q.cond = sync.NewCond(&q.mu)
	state.OnStop(q.wakeAll)
	return q
}

// Push appends item, evicting and releasing the oldest item when full.
func (q *Queue) Push(item frame.Item) {
	var evicted frame.Item
	var didEvict bool

	q.mu.Lock()
	if q.size == len(q.buf) {
		evicted = q.buf[q.head]
		q.buf[q.head] = frame.Item{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		didEvict = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = item
	q.size++
	q.mu.Unlock()

	q.enqueued.Add(1)
	q.cond.Signal()

	if didEvict {
		q.dropped.Add(1)
		evicted.Release()
	}
}

// Pop removes and returns the front item. It returns false only when the run
// is stopping and the queue is empty.
func (q *Queue) Pop() (frame.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && q.state.Running() {
		q.cond.Wait()
	}
	if q.size == 0 {
		return frame.Item{}, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = frame.Item{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return item, true
}

// Len returns the number of buffered items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int {
	return len(q.buf)
}

// Dropped returns how many items the overflow policy has evicted.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Enqueued returns the total number of pushes.
func (q *Queue) Enqueued() uint64 {
	return q.enqueued.Load()
}

func (q *Queue) wakeAll() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
