// Package worker provides a bounded pool of goroutines for store operations.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a job queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send jobs to the channel from sync workers and HTTP handlers
// 4. Workers process jobs concurrently, at most N at a time
//
// Sync writes and search/stats reads share the same pool, so a burst of
// channel pages can never open more store operations than there are workers.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrPoolStopped is returned for jobs submitted to, or queued in, a stopped pool.
var ErrPoolStopped = errors.New("worker pool is stopped")


// JobType identifies what kind of work a job represents.
type JobType string

const (
	JobStoreWrite JobType = "store_write"
	JobStoreRead  JobType = "store_read"
)

// Job represents a unit of work to be processed by a worker.
type Job struct {
	Type      JobType
	Run       func(ctx context.Context) error
	CreatedAt time.Time

	ctx  context.Context
	done chan error // buffered(1); receives Run's result
}

func (j *Job) finish(err error) {
	if j.done != nil {
		j.done <- err
	}
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Buffered channel acting as the job queue.
	jobs    chan *Job
	workers int

	// mu guards stopped so no send ever hits the closed jobs channel.
	mu      sync.RWMutex
	stopped bool

	wg sync.WaitGroup

	// Cancelled by Stop; unblocks submitters waiting for queue space.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool. Call Start before submitting.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan *Job, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	log.Printf("🚀 Starting %d store workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down all workers. Jobs still queued are answered
// with ErrPoolStopped instead of being run. Stop is idempotent.
func (p *Pool) Stop() {
	log.Println("⏹️  Stopping store workers...")
	p.cancel() // release submitters blocked on a full queue first

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	log.Println("✅ All store workers stopped")
}

// SubmitBlocking waits for queue space until ctx is done or the pool stops.
func (p *Pool) SubmitBlocking(ctx context.Context, job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	prepare(job, ctx)

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// Do runs fn on a worker and waits for its result.
func (p *Pool) Do(ctx context.Context, jobType JobType, fn func(ctx context.Context) error) error {
	job := &Job{Type: jobType, Run: fn, done: make(chan error, 1)}
	if err := p.SubmitBlocking(ctx, job); err != nil {
		return err
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		// The worker still finishes the job; its result lands in the
		// buffered channel and is dropped.
		return ctx.Err()
	}
}

func prepare(job *Job, ctx context.Context) {
	job.ctx = ctx
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	// range over a channel reads values until the channel is closed.
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			job.finish(ErrPoolStopped)
			continue
		}
		if err := job.ctx.Err(); err != nil {
			// submitter gave up while the job was queued
			job.finish(err)
			continue
		}
		job.finish(p.run(id, job))
	}
}

// run executes one job, converting a panic into an error so one bad job
// cannot take a worker down.
func (p *Pool) run(id int, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Worker %d: %s job panicked: %v", id, job.Type, r)
			err = errors.New("store job panicked")
		}
	}()
	return job.Run(job.ctx)
}
