package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Pool feeds submitted jobs to a fixed number of goroutines and delivers
// their results on a channel. Results must be drained, either by reading
// Results or by calling Wait or Stop.
type Pool struct {
	size    int
	queue   chan Job
	results chan *JobResult

	ctx    context.Context
	cancel context.CancelFunc

	running  sync.WaitGroup
	shutdown sync.Once
	closed   atomic.Bool

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	busy      atomic.Int64 // summed job nanoseconds
}

// NewPool starts size workers. Jobs run with a context derived from ctx.
// A size <= 0 means one worker per CPU.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return NewPoolQueue(ctx, size, size*2)
}

// NewPoolQueue is NewPool with at most queue jobs waiting for a worker.
// TrySubmit fails once that many are pending.
func NewPoolQueue(ctx context.Context, size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		size:    size,
		queue:   make(chan Job, queue),
		results: make(chan *JobResult, size+queue),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.running.Add(size)
	for range size {
		go p.loop()
	}
	return p
}

// Submit queues job, waiting for room. It returns false when the pool is
// closed or its context is done. Submit must not race with Stop or Wait.
func (p *Pool) Submit(job Job) bool {
	return p.enqueue(job, true)
}

// TrySubmit queues job only if there is room right now.
func (p *Pool) TrySubmit(job Job) bool {
	return p.enqueue(job, false)
}

func (p *Pool) enqueue(job Job, wait bool) bool {
	if p.closed.Load() || p.ctx.Err() != nil {
		return false
	}
	if !wait {
		select {
		case p.queue <- job:
			p.submitted.Add(1)
			return true
		default:
			return false
		}
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- job:
		p.submitted.Add(1)
		return true
	}
}

// Results delivers one JobResult per finished job, in completion order.
func (p *Pool) Results() <-chan *JobResult {
	return p.results
}

// Stop cancels the jobs still queued or running and waits for the workers
// to exit. Undelivered results are dropped.
func (p *Pool) Stop() {
	p.close(func() {
		p.cancel()
		go func() {
			for range p.results {
			}
		}()
	})
}

// Wait stops accepting jobs, lets the queued ones finish and returns their
// results. Calling Wait after Stop, or twice, returns an empty BatchResult.
func (p *Pool) Wait() *BatchResult {
	br := &BatchResult{Results: make([]*JobResult, 0)}
	drained := make(chan struct{})
	ok := p.close(func() {
		go func() {
			defer close(drained)
			for r := range p.results {
				br.Results = append(br.Results, r)
			}
		}()
	})
	if !ok {
		return &BatchResult{}
	}
	<-drained
	p.cancel()

	br.TotalJobs = int(p.submitted.Load())
	br.CompletedJobs = int(p.completed.Load())
	br.FailedJobs = int(p.failed.Load())
	br.TotalDuration = time.Duration(p.busy.Load())
	return br
}

// close runs drain, closes the queue and waits for the workers. It reports
// false when the pool was already closed.
func (p *Pool) close(drain func()) bool {
	first := false
	p.shutdown.Do(func() {
		first = true
		p.closed.Store(true)
		drain()
		close(p.queue)
		p.running.Wait()
		close(p.results)
	})
	return first
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		Workers:       p.size,
		JobsSubmitted: p.submitted.Load(),
		JobsCompleted: p.completed.Load(),
		JobsFailed:    p.failed.Load(),
	}
	if s.JobsCompleted > 0 {
		s.AvgDuration = time.Duration(uint64(p.busy.Load()) / s.JobsCompleted)
	}
	return s
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsFailed    uint64
	AvgDuration   time.Duration
}

func (p *Pool) loop() {
	defer p.running.Done()
	for job := range p.queue {
		r := runJob(p.ctx, job)
		p.completed.Add(1)
		if r.Error != nil {
			p.failed.Add(1)
		}
		p.busy.Add(int64(r.Duration))
		p.results <- r
	}
}
