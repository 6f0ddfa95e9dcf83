// Package worker runs independent jobs on a fixed set of goroutines.
//
// Run executes a known list of jobs and returns their results in
// submission order; the batch mode of the pipeline writes its targets this
// way. A Pool accepts jobs as they arrive. The watch command keeps one
// worker and one queue slot, so reruns never overlap and a burst of
// changes leaves at most one run pending:
//
//	runs := worker.NewPoolQueue(ctx, 1, 1)
//	defer runs.Stop()
//	if !runs.TrySubmit(worker.Job{ID: out, Run: rerun}) {
//	    // a run is already waiting
//	}
//	for r := range runs.Results() {
//	    // report r.Error
//	}
package worker
