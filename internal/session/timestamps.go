package session

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// TimestampLog appends "name timestamp" rows to the session timestamp file.
// Rows are flushed as they are written so an abrupt exit loses at most the
// row in flight.
type TimestampLog struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	rows   int
	closed bool
}

// OpenTimestampLog creates (truncating) the timestamp file at path.
func OpenTimestampLog(path string) (*TimestampLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open timestamp log: %w", err)
	}
	return &TimestampLog{file: file, buf: bufio.NewWriter(file)}, nil
}

// Record appends one row.
func (l *TimestampLog) Record(name string, timestamp int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	if _, err := fmt.Fprintf(l.buf, "%s %d\n", name, timestamp); err != nil {
		return err
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	l.rows++
	return nil
}

// Rows reports how many rows were recorded.
func (l *TimestampLog) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Close flushes and closes the file. Subsequent calls return os.ErrClosed.
func (l *TimestampLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	l.closed = true
	flushErr := l.buf.Flush()
	closeErr := l.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
