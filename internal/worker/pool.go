// Package worker runs deck background jobs (analysis, metadata extraction)
// on a bounded pool. Completion callbacks are serialized onto a single
// dispatch goroutine so observers never see concurrent notifications.
package worker

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a snapshot of one background job.
type Job struct {
	ID          string
	Name        string
	Status      Status
	Err         error
	CreatedAt   time.Time
	CompletedAt time.Time
}

type task struct {
	id   string
	run  func() error
	done func(err error)
}

// Pool is a fixed-size worker pool with a serialized callback lane.
type Pool struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool

	queue     chan task
	callbacks chan func()

	workers  sync.WaitGroup
	dispatch sync.WaitGroup

	logger *log.Logger
}

const queueCapacity = 100

// NewPool starts a pool with the given worker count. A nil logger silences
// diagnostics.
func NewPool(workers int, logger *log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	p := &Pool{
		jobs:      make(map[string]*Job),
		queue:     make(chan task, queueCapacity),
		callbacks: make(chan func(), queueCapacity),
		logger:    logger,
	}

	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	p.dispatch.Add(1)
	go func() {
		defer p.dispatch.Done()
		for fn := range p.callbacks {
			fn()
		}
	}()

	return p
}

// Submit queues a job. The run function executes on a pool worker; done, if
// non-nil, runs afterwards on the callback lane with run's error. The
// returned ID can be used to query job state.
func (p *Pool) Submit(name string, run func() error, done func(err error)) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	p.jobs[job.ID] = job
	p.mu.Unlock()

	p.queue <- task{id: job.ID, run: run, done: done}
	return job.ID, nil
}

// Job returns a snapshot of the job with the given ID.
func (p *Pool) Job(id string) (Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Jobs returns snapshots of every job the pool has seen.
func (p *Pool) Jobs() []Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Job, 0, len(p.jobs))
	for _, job := range p.jobs {
		out = append(out, *job)
	}
	return out
}

// Close stops accepting jobs and blocks until every queued job and callback
// has finished.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.queue)
	p.workers.Wait()
	close(p.callbacks)
	p.dispatch.Wait()
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for t := range p.queue {
		p.setStatus(t.id, StatusRunning, nil)

		err := p.runGuarded(t)

		if err != nil {
			p.setStatus(t.id, StatusFailed, err)
			p.logger.Printf("job %s failed: %v", t.id, err)
		} else {
			p.setStatus(t.id, StatusDone, nil)
		}

		if t.done != nil {
			p.callbacks <- func() { t.done(err) }
		}
	}
}

// runGuarded converts a job panic into an error so one bad job cannot take
// down the pool.
func (p *Pool) runGuarded(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return t.run()
}

func (p *Pool) setStatus(id string, status Status, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.jobs[id]; ok {
		job.Status = status
		job.Err = err
		if status == StatusDone || status == StatusFailed {
			job.CompletedAt = time.Now()
		}
	}
}
