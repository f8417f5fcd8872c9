package recorder

import "errors"

var (
	// ErrUsage marks invalid invocation arguments.
	ErrUsage = errors.New("invalid arguments")
	// ErrStartup marks failures that prevent recording from starting.
	ErrStartup = errors.New("recording startup failed")
	// ErrLocked indicates another recorder owns the sensor directory.
	ErrLocked = errors.New("sensor directory is locked by another recorder")
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitStartup = 1
	ExitUsage   = 2
)

// ExitCode maps a Run error to a process exit status. Stalls, parent
// disconnects and signals all end a run normally and return nil from Run.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitStartup
	}
}
