// Package control drives the sensor's HTTP control plane: stream mode
// selection, transceiver power, and range.
//
// Every request is independent and idempotent at the device. Responses are
// not parsed; only transport success and a 2xx status matter. Disable is
// retried a bounded number of times and never fails shutdown.
package control
