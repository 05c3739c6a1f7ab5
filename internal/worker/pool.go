// Package worker runs independent jobs on a bounded number of goroutines.
// crew uses it to compute embeddings for document batches in parallel.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one unit of work.
type Job[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result holds the outcome of a single job. Results keep the order of the
// submitted jobs.
type Result[T any] struct {
	Name     string
	Value    T
	Duration time.Duration
	Error    error
}

// Pool bounds how many jobs run at once.
type Pool struct {
	maxWorkers int
	log        zerolog.Logger
}

// PoolConfig holds configuration for creating a worker pool.
type PoolConfig struct {
	MaxWorkers int
	Logger     zerolog.Logger
}

// NewPool creates a new worker pool.
func NewPool(pc PoolConfig) *Pool {
	if pc.MaxWorkers < 1 {
		pc.MaxWorkers = 1
	}
	return &Pool{
		maxWorkers: pc.MaxWorkers,
		log:        pc.Logger,
	}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int { return p.maxWorkers }

// Run executes all jobs (up to the pool's limit at a time) and returns
// their results. Jobs not yet started when ctx is cancelled fail with the
// context error.
func Run[T any](ctx context.Context, p *Pool, jobs []Job[T]) []Result[T] {
	if p.maxWorkers <= 1 || len(jobs) <= 1 {
		return runSequential(ctx, p, jobs)
	}
	return runParallel(ctx, p, jobs)
}

// runSequential runs jobs one by one.
func runSequential[T any](ctx context.Context, p *Pool, jobs []Job[T]) []Result[T] {
	results := make([]Result[T], len(jobs))
	for i, job := range jobs {
		results[i] = execute(ctx, p, job)
	}
	return results
}

// runParallel runs jobs concurrently, bounded by a semaphore.
func runParallel[T any](ctx context.Context, p *Pool, jobs []Job[T]) []Result[T] {
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	results := make([]Result[T], len(jobs))

	for i, job := range jobs {
		select {
		case sem <- struct{}{}: // Acquire worker slot.
		case <-ctx.Done():
			results[i] = Result[T]{Name: job.Name, Error: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(idx int, j Job[T]) {
			defer wg.Done()
			defer func() { <-sem }() // Release worker slot.
			results[idx] = execute(ctx, p, j)
		}(i, job)
	}

	wg.Wait()
	return results
}

func execute[T any](ctx context.Context, p *Pool, job Job[T]) Result[T] {
	if err := ctx.Err(); err != nil {
		return Result[T]{Name: job.Name, Error: err}
	}

	start := time.Now()
	v, err := job.Run(ctx)
	r := Result[T]{Name: job.Name, Value: v, Duration: time.Since(start), Error: err}
	if err != nil {
		p.log.Warn().Err(err).Str("job", job.Name).Msg("job failed")
	} else {
		p.log.Debug().Str("job", job.Name).Dur("duration", r.Duration).Msg("job done")
	}
	return r
}

// FirstError returns the first failed job's error, naming the job.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%s: %w", r.Name, r.Error)
		}
	}
	return nil
}
