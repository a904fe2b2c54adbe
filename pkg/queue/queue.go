// Package queue implements the in-process job queue carrying durable
// persistence work off the request path. Producers enqueue a Job after the
// cache write and broadcast have happened; workers drain the queue and
// apply each job to the durable store.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

const defaultCapacity = 64 * 1024
const fallbackCapacity = 1024

// JobType is the explicit dispatch key set by the enqueueing handler,
// which has the authoritative intent for the operation. Workers never
// probe payloads to decide dispatch.
type JobType string

const (
	JobUserCreate JobType = "user.create"
	JobUserUpdate JobType = "user.update"

	JobImageAdd    JobType = "image.add"
	JobImageRemove JobType = "image.remove"

	JobPostCreate JobType = "post.create"
	JobPostUpdate JobType = "post.update"
	JobPostDelete JobType = "post.delete"

	JobCommentCreate JobType = "comment.create"

	JobReactionAdd    JobType = "reaction.add"
	JobReactionRemove JobType = "reaction.remove"

	JobFollowerAdd    JobType = "follower.add"
	JobFollowerRemove JobType = "follower.remove"
	JobBlockAdd       JobType = "block.add"
	JobBlockRemove    JobType = "block.remove"

	JobChatConversation   JobType = "chat.conversation"
	JobChatMessage        JobType = "chat.message"
	JobChatRead           JobType = "chat.read"
	JobChatReactionAdd    JobType = "chat.reaction.add"
	JobChatReactionRemove JobType = "chat.reaction.remove"
	JobChatDelete         JobType = "chat.delete"

	JobNotificationCreate JobType = "notification.create"
	JobNotificationRead   JobType = "notification.read"
	JobNotificationDelete JobType = "notification.delete"

	JobEmailSend JobType = "email.send"
)

// Job is a lightweight in-memory representation of one durable
// persistence operation. Key is the entity key the job targets (minted
// before the cache write, so replaying the job is idempotent). Payload
// may be backed by a pooled buffer; consumers must call Item.Done when
// finished.
type Job struct {
	Type JobType
	Key  string
	// Payload holds the serialized entity for the operation (may be nil).
	Payload []byte
	// TS is the server timestamp at enqueue (nanoseconds).
	TS int64
	// EnqSeq is a monotonic sequence assigned when the job is accepted
	// into the queue.
	EnqSeq uint64
	// Attempts counts prior delivery attempts; zero on first enqueue,
	// bumped by the re-drive sweep.
	Attempts int
}

// Item wraps a Job and owns a pooled buffer if one was used. Consumers
// MUST call Done exactly once after processing.
type Item struct {
	Job *Job

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
	q    *Queue
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.q != nil {
			atomic.AddInt64(&it.q.inFlight, -1)
			it.q = nil
		}
		if it.buf != nil {
			if cap(it.buf.B) > maxPooledBuffer {
				// drop oversized buffers so GC can reclaim the array
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Job != nil {
			it.Job.Payload = nil
			jobPool.Put(it.Job)
			it.Job = nil
		}
	})
}

var jobPool = sync.Pool{New: func() any { return &Job{} }}

// maxPooledBuffer caps the buffer size returned to the pool.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

// ErrQueueClosed is returned on enqueue after the queue has closed.
var ErrQueueClosed = errors.New("job queue closed")

// Queue is a bounded in-memory job queue, safe for concurrent producers.
// Consumers range over Out to receive items.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	closed   int32
	enqSeq   uint64

	enqWg    sync.WaitGroup
	inFlight int64
}

// New creates a bounded Queue of the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = fallbackCapacity
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// NewDefault creates a Queue with the default capacity.
func NewDefault() *Queue { return New(defaultCapacity) }

// Out exposes items for consumers. Callers must not close it.
func (q *Queue) Out() <-chan *Item { return q.ch }

// TryEnqueue enqueues a job without blocking; returns ErrQueueFull when
// at capacity. The payload is copied into a pooled buffer so the caller's
// slice may be reused immediately.
func (q *Queue) TryEnqueue(job *Job) error {
	it, err := q.prepare(job)
	if err != nil {
		return err
	}
	defer q.enqWg.Done()

	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		enqueuedTotal.WithLabelValues(string(job.Type)).Inc()
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		enqueueFailTotal.WithLabelValues(string(job.Type)).Inc()
		return ErrQueueFull
	}
}

// Enqueue blocks until the job is accepted or ctx is cancelled.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	it, err := q.prepare(job)
	if err != nil {
		return err
	}
	defer q.enqWg.Done()

	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		enqueuedTotal.WithLabelValues(string(job.Type)).Inc()
		return nil
	case <-ctx.Done():
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		enqueueFailTotal.WithLabelValues(string(job.Type)).Inc()
		return ctx.Err()
	}
}

// TryEnqueueBytes constructs a Job from the fields and enqueues it
// without blocking.
func (q *Queue) TryEnqueueBytes(typ JobType, key string, payload []byte, ts int64) error {
	return q.TryEnqueue(&Job{Type: typ, Key: key, Payload: payload, TS: ts})
}

// prepare copies the job into pooled storage and registers the enqueue
// with the close barrier. On success the caller owns one enqWg slot.
func (q *Queue) prepare(job *Job) (*Item, error) {
	if atomic.LoadInt32(&q.closed) == 1 {
		enqueueFailTotal.WithLabelValues(string(job.Type)).Inc()
		return nil, ErrQueueClosed
	}

	q.enqWg.Add(1)

	if atomic.LoadInt32(&q.closed) == 1 {
		q.enqWg.Done()
		enqueueFailTotal.WithLabelValues(string(job.Type)).Inc()
		return nil, ErrQueueClosed
	}

	newJob := jobPool.Get().(*Job)
	*newJob = *job
	newJob.EnqSeq = atomic.AddUint64(&q.enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(job.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], job.Payload...)
		newJob.Payload = bb.B[:len(job.Payload)]
	}
	return &Item{Job: newJob, buf: bb, q: q}, nil
}

// CloseAndDrain rejects new enqueues, waits for in-progress enqueues,
// then closes the channel and drains remaining items so their resources
// are released. Items drained here were accepted but never processed.
func (q *Queue) CloseAndDrain() {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return
	}
	q.enqWg.Wait()
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the current number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many jobs were rejected at enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// InFlight returns accepted items not yet released by Done.
func (q *Queue) InFlight() int64 { return atomic.LoadInt64(&q.inFlight) }
