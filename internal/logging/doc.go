// Package logging assembles the structured slog loggers used by fieldrec.
//
// It owns the console and JSON handlers, level and output plumbing, a tee
// handler for diagnostic side files, and a handler that stamps every record
// with the recording session ID. Attribute helpers and the standard field
// keys keep log lines from the source, persister, watchdog, and control
// client in the same shape so a field technician can grep one run log.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
