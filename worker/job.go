package worker

import (
	"context"
	"errors"
	"time"
)

// Job is one unit of work submitted to a Pool.
type Job struct {
	// ID identifies the job in its JobResult.
	ID string

	// Run performs the work. It should return promptly once ctx is done.
	Run func(ctx context.Context) error
}

// JobResult is the outcome of one Job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Error is the error returned by Job.Run, if any.
	Error error

	Duration time.Duration
}

// BatchResult aggregates the results of several jobs.
type BatchResult struct {
	// Results holds one entry per completed job. Pool results arrive in
	// completion order; Run keeps submission order.
	Results []*JobResult

	TotalJobs     int
	CompletedJobs int
	FailedJobs    int

	// TotalDuration sums the duration of every completed job.
	TotalDuration time.Duration
}

// HasErrors reports whether any job failed.
func (br *BatchResult) HasErrors() bool {
	return br.FailedJobs > 0
}

// Err joins the job errors, each prefixed with its job ID. It returns nil
// when every job succeeded.
func (br *BatchResult) Err() error {
	var errs []error
	for _, r := range br.Results {
		if r != nil && r.Error != nil {
			errs = append(errs, &JobError{ID: r.ID, Err: r.Error})
		}
	}
	return errors.Join(errs...)
}

// JobError ties a job failure to its ID.
type JobError struct {
	ID  string
	Err error
}

func (e *JobError) Error() string {
	return e.ID + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// ErrNoRun is reported for a job without a Run function.
var ErrNoRun = poolError("job has no run function")

type poolError string

func (e poolError) Error() string {
	return string(e)
}
