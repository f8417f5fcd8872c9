// Package frame defines the unit of data that moves from a capture source
// through the bounded queue to the persister.
//
// Frames are owned by exactly one holder at a time: the source loop until the
// item is pushed, the queue slot until it is popped or evicted, and the
// persister until the frame has been written. Whoever holds a frame last is
// responsible for releasing it.
package frame

import "time"

// Frame is an opaque image payload produced by a capture capability.
type Frame interface {
	Empty() bool
	Close() error
}

// Item pairs a frame with the wall-clock time it was acquired.
type Item struct {
	Frame Frame
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64
	// Seq is the acquisition counter value at the time the frame was read.
	Seq uint64
}

// Valid reports whether the item carries a usable frame.
func (i Item) Valid() bool {
	return i.Frame != nil && !i.Frame.Empty()
}

// Release frees the frame held by the item. It is safe on a zero Item.
func (i Item) Release() {
	if i.Frame != nil {
		_ = i.Frame.Close()
	}
}

// Millis converts t into the millisecond timestamp carried by Item.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
