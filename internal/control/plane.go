package control

import "context"

// Plane is the control surface the recorder drives over a run.
type Plane interface {
	Start(ctx context.Context, rangeMeters float64) error
	SetRange(ctx context.Context, rangeMeters float64) error
	DisableWithRetry(ctx context.Context) error
}

// Noop is the plane for sensors without a control endpoint and for debug
// runs against a local device.
type Noop struct{}

func (Noop) Start(context.Context, float64) error    { return nil }
func (Noop) SetRange(context.Context, float64) error { return nil }
func (Noop) DisableWithRetry(context.Context) error  { return nil }

var (
	_ Plane = (*Client)(nil)
	_ Plane = Noop{}
)
