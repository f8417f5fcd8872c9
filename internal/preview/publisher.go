package preview

import (
	"log/slog"
	"sync/atomic"

	"fieldrec/internal/frame"
	"fieldrec/internal/logging"
)

const (
	// Width and Height are the preview geometry.
	Width  = 400
	Height = 225
	// Quality is the JPEG quality used for previews.
	Quality = 50
	// MaxDatagram is the exclusive ceiling on encoded preview size.
	MaxDatagram = 60000
)

// Encoder downsamples and compresses a frame into preview bytes.
type Encoder interface {
	Encode(f frame.Frame) ([]byte, error)
}

// Sender transmits one datagram.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// Stats counts publisher outcomes.
type Stats struct {
	Sent     uint64
	Oversize uint64
	Failed   uint64
}

// Publisher encodes frames and hands them to a Sender. It never blocks on
// the network beyond a single send and never returns errors to the caller.
type Publisher struct {
	encoder Encoder
	sender  Sender
	logger  *slog.Logger

	sent     atomic.Uint64
	oversize atomic.Uint64
	failed   atomic.Uint64
}

// NewPublisher builds a publisher.
func NewPublisher(encoder Encoder, sender Sender, logger *slog.Logger) *Publisher {
	return &Publisher{
		encoder: encoder,
		sender:  sender,
		logger:  logging.NewComponentLogger(logger, "preview"),
	}
}

// Publish sends one preview of f. f is not retained.
func (p *Publisher) Publish(f frame.Frame) {
	if f == nil || f.Empty() {
		return
	}
	payload, err := p.encoder.Encode(f)
	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("preview encode failed", logging.Error(err))
		return
	}
	if len(payload) >= MaxDatagram {
		p.oversize.Add(1)
		return
	}
	if err := p.sender.Send(payload); err != nil {
		p.failed.Add(1)
		p.logger.Debug("preview send failed", logging.Error(err), logging.Int("bytes", len(payload)))
		return
	}
	p.sent.Add(1)
}

// Stats returns the counters so far.
func (p *Publisher) Stats() Stats {
	return Stats{Sent: p.sent.Load(), Oversize: p.oversize.Load(), Failed: p.failed.Load()}
}

// Close releases the sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}
