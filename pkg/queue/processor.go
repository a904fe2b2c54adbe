package queue

import (
	"context"
	"fmt"
	"sync"

	"chirpd/pkg/logger"
	"chirpd/pkg/store"
)

const defaultConcurrency = 5

// Handler applies one job to the durable store. Handlers must be
// idempotent: the entity key was minted before enqueue, so a replayed job
// writes the same record again.
type Handler func(ctx context.Context, job *Job) error

// FailureLog records jobs whose handler failed. Implemented by the
// durable store's dead-letter log.
type FailureLog interface {
	AppendDeadLetter(jobType, key string, payload []byte, jobErr error, attempts int) (store.DeadLetter, error)
}

// Processor drains a Queue with a fixed worker pool and dispatches each
// job to the handler registered for its type. A handler failure is logged
// and dead-lettered; it is never surfaced to the API caller that enqueued
// the job.
type Processor struct {
	q           *Queue
	failures    FailureLog
	concurrency int

	mu       sync.RWMutex
	handlers map[JobType]Handler

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewProcessor builds a Processor over q. concurrency <= 0 selects the
// default pool size.
func NewProcessor(q *Queue, failures FailureLog, concurrency int) *Processor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Processor{
		q:           q,
		failures:    failures,
		concurrency: concurrency,
		handlers:    make(map[JobType]Handler),
		stop:        make(chan struct{}),
	}
}

// Register binds the handler for a job type. Exactly one handler per
// type; a second registration replaces the first.
func (p *Processor) Register(typ JobType, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[typ] = h
}

// Start launches the worker pool. Call once.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run()
	}
	logger.Info("queue_workers_started", "concurrency", p.concurrency)
}

// Stop closes the queue to producers, lets workers finish what they can
// and waits for them to exit. Jobs still buffered when the queue closes
// are released unprocessed.
func (p *Processor) Stop() {
	close(p.stop)
	p.q.CloseAndDrain()
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()
	for {
		select {
		case it, ok := <-p.q.Out():
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				p.process(it.Job)
			}(it)
		case <-p.stop:
			return
		}
	}
}

func (p *Processor) process(job *Job) {
	p.mu.RLock()
	h, ok := p.handlers[job.Type]
	p.mu.RUnlock()

	if !ok {
		logger.Warn("queue_handler_missing", "type", string(job.Type), "key", job.Key)
		p.deadLetter(job, fmt.Errorf("no handler registered for %s", job.Type))
		return
	}

	if err := h(context.Background(), job); err != nil {
		logger.Error("queue_job_failed", "type", string(job.Type), "key", job.Key, "attempts", job.Attempts, "error", err)
		p.deadLetter(job, err)
		return
	}
	jobsTotal.WithLabelValues(string(job.Type), "completed").Inc()
}

func (p *Processor) deadLetter(job *Job, jobErr error) {
	jobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
	if p.failures == nil {
		return
	}
	if _, err := p.failures.AppendDeadLetter(string(job.Type), job.Key, job.Payload, jobErr, job.Attempts+1); err != nil {
		logger.Error("queue_deadletter_append_failed", "type", string(job.Type), "key", job.Key, "error", err)
	}
}
