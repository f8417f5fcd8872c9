package pipeline

import "errors"

var (
	// ErrSourceOpen marks a capture capability that could not be opened.
	ErrSourceOpen = errors.New("capture source unavailable")
	// ErrStreamStalled marks a stream that produced no good frame within the
	// stall threshold.
	ErrStreamStalled = errors.New("capture stream stalled")
)
