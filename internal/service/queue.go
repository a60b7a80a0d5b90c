package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const asyncJobTimeout = 5 * time.Second

type asyncJob struct {
	name string
	run  func(ctx context.Context) error
}

// AsyncQueue runs fire-and-forget jobs on a fixed pool of workers.
// Submit never blocks: when the buffer is full the job is dropped and logged.
type AsyncQueue struct {
	jobs    chan asyncJob
	workers int
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncQueue creates a queue holding up to size pending jobs.
func NewAsyncQueue(size, workers int, log logrus.FieldLogger) *AsyncQueue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &AsyncQueue{
		jobs:    make(chan asyncJob, size),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. They exit once Stop has been called and the buffer drained.
func (q *AsyncQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

// Submit enqueues a job. It reports false if the job was dropped.
func (q *AsyncQueue) Submit(name string, run func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.log.WithField("job", name).Warn("async queue closed, dropping job")
		return false
	}

	select {
	case q.jobs <- asyncJob{name: name, run: run}:
		return true
	default:
		q.log.WithField("job", name).Warn("async queue full, dropping job")
		return false
	}
}

// Stop refuses new jobs and waits for queued ones to finish or ctx to end.
func (q *AsyncQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *AsyncQueue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.runJob(job)
	}
}

func (q *AsyncQueue) runJob(job asyncJob) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncJobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("job", job.name).Errorf("async job panicked: %v", r)
		}
	}()

	if err := job.run(ctx); err != nil {
		q.log.WithField("job", job.name).WithError(err).Warn("async job failed")
	}
}
