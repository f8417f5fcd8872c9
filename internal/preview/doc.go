// Package preview publishes downsampled, lossy frames to a fixed UDP endpoint
// for live monitoring.
//
// Each published frame is encoded into one datagram with no header. Frames
// whose encoding reaches MaxDatagram bytes are dropped instead of being
// fragmented. There is no retry, acknowledgment, or backlog.
package preview
