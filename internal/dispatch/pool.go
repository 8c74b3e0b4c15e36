// Package dispatch runs independent job units, inline or across a bounded
// pool of workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/paircorr/internal/job"
)

// Unit is one self-contained runnable bound to a job descriptor.
type Unit interface {
	Job() job.Descriptor
	Run(ctx context.Context) error
}

// Launcher builds the unit for a job.
type Launcher interface {
	Unit(d job.Descriptor) (Unit, error)
}

// JobResult holds the outcome of a single unit.
type JobResult struct {
	Job     job.Descriptor
	Err     error
	Elapsed time.Duration
}

// JobError attributes a failure to its job.
type JobError struct {
	Job job.Descriptor
	Err error
}

func (e *JobError) Error() string { return fmt.Sprintf("%s: %v", e.Job, e.Err) }

func (e *JobError) Unwrap() error { return e.Err }

// Pool dispatches units across at most Workers concurrent workers. A failed
// unit does not cancel its siblings.
type Pool struct {
	workers    int
	onProgress func(ProgressEvent)
}

// NewPool creates a Pool of the given size (at least 1).
// onProgress is called synchronously from each worker; it may be nil.
func NewPool(workers int, onProgress func(ProgressEvent)) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		onProgress: onProgress,
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Build asks the launcher for one unit per descriptor.
func Build(l Launcher, jobs []job.Descriptor) ([]Unit, error) {
	units := make([]Unit, 0, len(jobs))
	for _, d := range jobs {
		u, err := l.Unit(d)
		if err != nil {
			return nil, fmt.Errorf("build unit for %s: %w", d, err)
		}
		units = append(units, u)
	}
	return units, nil
}

// Run executes every unit and blocks until all have finished. A single
// unit runs inline on the calling goroutine.
//
// All results are returned, in input order. The returned error joins one
// *JobError per failed unit.
func (p *Pool) Run(ctx context.Context, units []Unit) ([]JobResult, error) {
	results := make([]JobResult, len(units))
	for _, u := range units {
		p.emit(ProgressEvent{Job: u.Job(), Status: ProgressPending})
	}

	if len(units) == 1 {
		results[0] = p.runOne(ctx, units[0])
		return results, joinFailures(results)
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, u := range units {
		g.Go(func() error {
			results[i] = p.runOne(ctx, u)
			return nil // failures are collected, never cancel siblings
		})
	}
	_ = g.Wait()

	return results, joinFailures(results)
}

func (p *Pool) runOne(ctx context.Context, u Unit) JobResult {
	p.emit(ProgressEvent{Job: u.Job(), Status: ProgressWorking})
	start := time.Now()
	err := u.Run(ctx)
	res := JobResult{Job: u.Job(), Err: err, Elapsed: time.Since(start)}
	status := ProgressComplete
	if err != nil {
		status = ProgressFailed
	}
	p.emit(ProgressEvent{Job: res.Job, Status: status, Elapsed: res.Elapsed, Err: err})
	return res
}

func joinFailures(results []JobResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, &JobError{Job: r.Job, Err: r.Err})
		}
	}
	return errors.Join(errs...)
}

// emit sends a progress event if a callback is registered.
func (p *Pool) emit(ev ProgressEvent) {
	if p.onProgress != nil {
		p.onProgress(ev)
	}
}
