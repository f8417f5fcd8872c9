// Package pipeline implements the capture → queue → persist data path and the
// shutdown coordination shared by every task of a recorder run.
//
// A RunState is created once per process and handed to each task. Any task may
// request shutdown; the transition is monotone and only the first request is
// observed. Waiters blocked on the Queue are woken by the transition so the
// Persister can drain buffered items and exit without a new push.
//
// The Source loop owns the capture capability and feeds both the preview side
// branch and the Queue. The Persister owns the timestamp log and the output
// directory. The Queue is the only value mutated by two goroutines.
package pipeline
