package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirpd/pkg/ids"
	"chirpd/pkg/store"
)

func TestQueueCopiesPayloadAtEnqueue(t *testing.T) {
	q := New(4)
	payload := []byte(`{"id":"p1"}`)
	require.NoError(t, q.TryEnqueueBytes(JobPostCreate, "p1", payload, 42))

	// the caller may reuse its slice immediately
	payload[0] = 'X'

	it := <-q.Out()
	assert.Equal(t, JobPostCreate, it.Job.Type)
	assert.Equal(t, "p1", it.Job.Key)
	assert.Equal(t, `{"id":"p1"}`, string(it.Job.Payload))
	assert.Equal(t, int64(42), it.Job.TS)
	assert.Equal(t, uint64(1), it.Job.EnqSeq)
	it.Done()
}

func TestQueueFullRejectsWithoutBlocking(t *testing.T) {
	q := New(1)
	require.NoError(t, q.TryEnqueueBytes(JobUserCreate, "u1", nil, 0))
	err := q.TryEnqueueBytes(JobUserCreate, "u2", nil, 0)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 1, q.Len())
}

func TestQueueEnqueueHonorsContext(t *testing.T) {
	q := New(1)
	require.NoError(t, q.TryEnqueueBytes(JobUserCreate, "u1", nil, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, &Job{Type: JobUserCreate, Key: "u2"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClosedRejectsEnqueue(t *testing.T) {
	q := New(4)
	q.CloseAndDrain()
	err := q.TryEnqueueBytes(JobPostCreate, "p1", nil, 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

type recordingFailureLog struct {
	mu      sync.Mutex
	letters []store.DeadLetter
}

func (r *recordingFailureLog) AppendDeadLetter(jobType, key string, payload []byte, jobErr error, attempts int) (store.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl := store.DeadLetter{
		ID:       ids.NewID(),
		JobType:  jobType,
		Key:      key,
		Payload:  append([]byte(nil), payload...),
		Error:    jobErr.Error(),
		Attempts: attempts,
	}
	r.letters = append(r.letters, dl)
	return dl, nil
}

func (r *recordingFailureLog) all() []store.DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.DeadLetter(nil), r.letters...)
}

func TestProcessorDispatchesByRegisteredType(t *testing.T) {
	q := New(16)
	p := NewProcessor(q, nil, 2)

	got := make(chan string, 2)
	p.Register(JobPostCreate, func(ctx context.Context, job *Job) error {
		got <- "post:" + job.Key
		return nil
	})
	p.Register(JobCommentCreate, func(ctx context.Context, job *Job) error {
		got <- "comment:" + job.Key
		return nil
	})
	p.Start()
	defer p.Stop()

	require.NoError(t, q.TryEnqueueBytes(JobPostCreate, "p1", []byte("{}"), 0))
	require.NoError(t, q.TryEnqueueBytes(JobCommentCreate, "c1", []byte("{}"), 0))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-got:
			seen[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handlers")
		}
	}
	assert.True(t, seen["post:p1"])
	assert.True(t, seen["comment:c1"])
}

func TestProcessorDeadLettersFailedJobs(t *testing.T) {
	q := New(16)
	failures := &recordingFailureLog{}
	p := NewProcessor(q, failures, 1)

	done := make(chan struct{})
	p.Register(JobReactionAdd, func(ctx context.Context, job *Job) error {
		defer close(done)
		return assert.AnError
	})
	p.Start()
	defer p.Stop()

	// enqueue reports success; the failure stays on the durable side
	require.NoError(t, q.TryEnqueueBytes(JobReactionAdd, "p1:lee", []byte(`{"type":"like"}`), 0))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	require.Eventually(t, func() bool { return len(failures.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	dl := failures.all()[0]
	assert.Equal(t, "reaction.add", dl.JobType)
	assert.Equal(t, "p1:lee", dl.Key)
	assert.Equal(t, 1, dl.Attempts)
	assert.Equal(t, `{"type":"like"}`, string(dl.Payload))
}

func TestProcessorDeadLettersUnregisteredType(t *testing.T) {
	q := New(16)
	failures := &recordingFailureLog{}
	p := NewProcessor(q, failures, 1)
	p.Start()
	defer p.Stop()

	require.NoError(t, q.TryEnqueueBytes(JobEmailSend, "welcome", nil, 0))
	require.Eventually(t, func() bool { return len(failures.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, failures.all()[0].Error, "no handler registered")
}

type fakeFailureStore struct {
	mu      sync.Mutex
	letters map[string]store.DeadLetter
}

func (f *fakeFailureStore) ListDeadLetters(limit int) ([]store.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.DeadLetter, 0, len(f.letters))
	for _, dl := range f.letters {
		out = append(out, dl)
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeFailureStore) DeleteDeadLetter(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.letters, id)
	return nil
}

func TestRedriverReplaysUnderAttemptCap(t *testing.T) {
	q := New(16)
	failures := &fakeFailureStore{letters: map[string]store.DeadLetter{
		"dl1": {ID: "dl1", JobType: "post.create", Key: "p1", Payload: []byte("{}"), Attempts: 1},
		"dl2": {ID: "dl2", JobType: "post.create", Key: "p2", Payload: []byte("{}"), Attempts: maxRedriveAttempts},
	}}

	r, err := NewRedriver(q, failures, "")
	require.NoError(t, err)
	require.NoError(t, r.RunOnce())

	// dl1 re-enqueued and deleted; dl2 capped, left for an operator
	assert.Equal(t, 1, q.Len())
	it := <-q.Out()
	assert.Equal(t, "p1", it.Job.Key)
	assert.Equal(t, 1, it.Job.Attempts)
	it.Done()

	remaining, err := failures.ListDeadLetters(0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "dl2", remaining[0].ID)
}

func TestRedriverRejectsBadCron(t *testing.T) {
	_, err := NewRedriver(New(1), &fakeFailureStore{}, "not a cron")
	assert.Error(t, err)
}
