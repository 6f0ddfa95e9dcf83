package worker

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func counting(n *atomic.Int32, err error) func(context.Context) error {
	return func(ctx context.Context) error {
		n.Add(1)
		return err
	}
}

func TestPool_NewPool(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	defer pool.Stop()

	if pool.size != 2 {
		t.Errorf("workers = %d; want 2", pool.size)
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	pool := NewPool(context.Background(), 0)
	defer pool.Stop()

	if pool.size <= 0 {
		t.Errorf("workers = %d; want > 0", pool.size)
	}
}

func TestPool_SubmitAndReceive(t *testing.T) {
	var n atomic.Int32
	pool := NewPool(context.Background(), 2)
	defer pool.Stop()

	if !pool.Submit(Job{ID: "out.xml", Run: counting(&n, nil)}) {
		t.Fatal("expected job to be submitted")
	}

	select {
	case result := <-pool.Results():
		if result.ID != "out.xml" {
			t.Errorf("ID = %q; want %q", result.ID, "out.xml")
		}
		if result.Error != nil {
			t.Errorf("Error = %v; want nil", result.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
	if n.Load() != 1 {
		t.Errorf("calls = %d; want 1", n.Load())
	}
}

func TestPool_SubmitToClosedPool(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Stop()

	if pool.Submit(Job{ID: "after-close"}) {
		t.Error("expected submit to fail after close")
	}
	if pool.TrySubmit(Job{ID: "after-close"}) {
		t.Error("expected async submit to fail after close")
	}
}

func TestPool_DoubleStop(t *testing.T) {
	pool := NewPool(context.Background(), 2)

	pool.Stop()
	pool.Stop()
}

func TestPool_NoRun(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	defer pool.Stop()

	pool.Submit(Job{ID: "empty"})

	select {
	case result := <-pool.Results():
		if !errors.Is(result.Error, ErrNoRun) {
			t.Errorf("Error = %v; want ErrNoRun", result.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
}

func TestPool_Wait(t *testing.T) {
	var n atomic.Int32
	boom := errors.New("boom")
	pool := NewPool(context.Background(), 3)

	for i := 0; i < 5; i++ {
		var err error
		if i == 2 {
			err = boom
		}
		pool.Submit(Job{ID: strconv.Itoa(i), Run: counting(&n, err)})
	}
	br := pool.Wait()

	if br.TotalJobs != 5 || br.CompletedJobs != 5 {
		t.Errorf("TotalJobs = %d, CompletedJobs = %d; want 5, 5", br.TotalJobs, br.CompletedJobs)
	}
	if br.FailedJobs != 1 {
		t.Errorf("FailedJobs = %d; want 1", br.FailedJobs)
	}
	if len(br.Results) != 5 {
		t.Errorf("len(Results) = %d; want 5", len(br.Results))
	}
	if !errors.Is(br.Err(), boom) {
		t.Errorf("Err() = %v; want wrapping boom", br.Err())
	}

	var je *JobError
	if !errors.As(br.Err(), &je) || je.ID != "2" {
		t.Errorf("Err() = %v; want JobError for job 2", br.Err())
	}
	if n.Load() != 5 {
		t.Errorf("calls = %d; want 5", n.Load())
	}

	if again := pool.Wait(); again.TotalJobs != 0 {
		t.Errorf("second Wait TotalJobs = %d; want 0", again.TotalJobs)
	}
}

func TestPool_Stats(t *testing.T) {
	var n atomic.Int32
	pool := NewPool(context.Background(), 2)
	defer pool.Stop()

	pool.Submit(Job{ID: "stats", Run: counting(&n, nil)})

	select {
	case <-pool.Results():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}

	stats := pool.Stats()
	if stats.Workers != 2 {
		t.Errorf("Workers = %d; want 2", stats.Workers)
	}
	if stats.JobsSubmitted != 1 || stats.JobsCompleted != 1 {
		t.Errorf("JobsSubmitted = %d, JobsCompleted = %d; want 1, 1", stats.JobsSubmitted, stats.JobsCompleted)
	}
}

func TestPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	defer pool.Stop()

	cancel()
	if pool.Submit(Job{ID: "late", Run: func(context.Context) error { return nil }}) {
		t.Error("expected submit to fail on a cancelled pool")
	}
}

func TestPool_QueueBound(t *testing.T) {
	pool := NewPoolQueue(context.Background(), 1, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := Job{ID: "running", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}

	if !pool.TrySubmit(blocking) {
		t.Fatal("first TrySubmit should succeed")
	}
	<-started

	if !pool.TrySubmit(Job{ID: "pending", Run: func(context.Context) error { return nil }}) {
		t.Fatal("second TrySubmit should take the free queue slot")
	}
	if pool.TrySubmit(Job{ID: "dropped", Run: func(context.Context) error { return nil }}) {
		t.Error("third TrySubmit should fail while one job runs and one waits")
	}

	close(release)
	result := pool.Wait()
	if result.TotalJobs != 2 || result.CompletedJobs != 2 {
		t.Errorf("TotalJobs = %d, CompletedJobs = %d; want 2, 2", result.TotalJobs, result.CompletedJobs)
	}
	if len(result.Results) != 2 {
		t.Errorf("len(Results) = %d; want 2", len(result.Results))
	}
}

func TestRun_Empty(t *testing.T) {
	br := Run(context.Background(), 2, nil)
	if br.TotalJobs != 0 || br.HasErrors() {
		t.Errorf("TotalJobs = %d, HasErrors = %v; want 0, false", br.TotalJobs, br.HasErrors())
	}
	if br.Err() != nil {
		t.Errorf("Err() = %v; want nil", br.Err())
	}
}

func TestRun_KeepsOrder(t *testing.T) {
	jobs := make([]Job, 10)
	for i := range jobs {
		delay := time.Duration(10-i) * time.Millisecond
		jobs[i] = Job{
			ID: strconv.Itoa(i),
			Run: func(ctx context.Context) error {
				time.Sleep(delay)
				return nil
			},
		}
	}

	br := Run(context.Background(), 4, jobs)
	if br.CompletedJobs != 10 {
		t.Fatalf("CompletedJobs = %d; want 10", br.CompletedJobs)
	}
	for i, r := range br.Results {
		if r.ID != strconv.Itoa(i) {
			t.Errorf("Results[%d].ID = %q; want %q", i, r.ID, strconv.Itoa(i))
		}
	}
}

func TestRun_Sequential(t *testing.T) {
	var n atomic.Int32
	br := Run(context.Background(), 1, []Job{
		{ID: "a", Run: counting(&n, nil)},
		{ID: "b", Run: counting(&n, errors.New("bad"))},
	})
	if br.FailedJobs != 1 {
		t.Errorf("FailedJobs = %d; want 1", br.FailedJobs)
	}
	if n.Load() != 2 {
		t.Errorf("calls = %d; want 2", n.Load())
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n atomic.Int32
	br := Run(ctx, 2, []Job{
		{ID: "a", Run: counting(&n, nil)},
		{ID: "b", Run: counting(&n, nil)},
		{ID: "c", Run: counting(&n, nil)},
	})
	if br.FailedJobs != 3 {
		t.Errorf("FailedJobs = %d; want 3", br.FailedJobs)
	}
	if !errors.Is(br.Err(), context.Canceled) {
		t.Errorf("Err() = %v; want context.Canceled", br.Err())
	}
	if n.Load() != 0 {
		t.Errorf("calls = %d; want 0", n.Load())
	}
}
