package pipeline

import "sync"

// Result summarizes a joined pipeline run.
type Result struct {
	Source     SourceStats
	Persister  PersisterStats
	Dropped    uint64
	Reason     StopReason
	SourceErr  error
	PersistErr error
}

// Run starts the source loop and the persister on their own goroutines and
// blocks until both have returned. The source stops on shutdown, stall, or
// open failure; the persister stops once the run is stopping and the queue
// is drained.
func Run(source *Source, persister *Persister, queue *Queue, state *RunState) Result {
	var (
		wg         sync.WaitGroup
		sourceErr  error
		persistErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceErr = source.Run()
	}()
	go func() {
		defer wg.Done()
		persistErr = persister.Run()
	}()
	wg.Wait()

	return Result{
		Source:     source.Stats(),
		Persister:  persister.Stats(),
		Dropped:    queue.Dropped(),
		Reason:     state.Reason(),
		SourceErr:  sourceErr,
		PersistErr: persistErr,
	}
}
