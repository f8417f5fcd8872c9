// Package recorder wires one sensor recording run end to end.
//
// A run acquires the per-sensor instance lock, opens the run log, powers
// the sensor through its control plane when it has one, and then runs the
// capture pipeline until a signal, parent disconnect, stream stall, or device
// removal stops it. Every exit path that gets past startup disables the
// sensor again before Run returns. The watchdog goroutine is never joined;
// callers exit the process once Run returns.
package recorder
