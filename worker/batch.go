package worker

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Run executes jobs on up to workers goroutines and returns their results
// in submission order. A single job runs on the calling goroutine. Jobs not
// started before ctx is done report ctx.Err().
func Run(ctx context.Context, workers int, jobs []Job) *BatchResult {
	if len(jobs) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(jobs) == 1 || workers == 1 {
		return runSequential(ctx, jobs)
	}
	return runParallel(ctx, min(workers, len(jobs)), jobs)
}

func runSequential(ctx context.Context, jobs []Job) *BatchResult {
	results := make([]*JobResult, len(jobs))
	for i, job := range jobs {
		results[i] = runJob(ctx, job)
	}
	return collect(results)
}

func runParallel(ctx context.Context, workers int, jobs []Job) *BatchResult {
	indexes := make(chan int, len(jobs))
	for i := range jobs {
		indexes <- i
	}
	close(indexes)

	results := make([]*JobResult, len(jobs))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = runJob(ctx, jobs[idx])
			}
		}()
	}
	wg.Wait()

	return collect(results)
}

func runJob(ctx context.Context, job Job) *JobResult {
	start := time.Now()
	result := &JobResult{ID: job.ID}
	switch {
	case job.Run == nil:
		result.Error = ErrNoRun
	case ctx.Err() != nil:
		result.Error = ctx.Err()
	default:
		result.Error = job.Run(ctx)
	}
	result.Duration = time.Since(start)
	return result
}

func collect(results []*JobResult) *BatchResult {
	br := &BatchResult{
		Results:       results,
		TotalJobs:     len(results),
		CompletedJobs: len(results),
	}
	for _, r := range results {
		if r.Error != nil {
			br.FailedJobs++
		}
		br.TotalDuration += r.Duration
	}
	return br
}
