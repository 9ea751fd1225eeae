package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	handled  []string
	attempts map[string]int
	failFor  map[string]int
	done     chan struct{}
	want     int
}

func newRecorder(want int) *recorder {
	return &recorder{
		attempts: make(map[string]int),
		failFor:  make(map[string]int),
		done:     make(chan struct{}),
		want:     want,
	}
}

func (r *recorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[job.Type]++
	if remaining := r.failFor[job.Type]; remaining > 0 {
		r.failFor[job.Type] = remaining - 1
		return errors.New("transient")
	}
	r.handled = append(r.handled, job.Type)
	if len(r.handled) == r.want {
		close(r.done)
	}
	return nil
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	rec := newRecorder(2)
	q := NewQueue("test", rec.handle, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.NoError(t, q.Enqueue(Job{Type: "b"}))
	rec.wait(t)

	assert.ElementsMatch(t, []string{"a", "b"}, rec.handled)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	rec := newRecorder(1)
	rec.failFor["flaky"] = 2
	q := NewQueue("test", rec.handle, QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "flaky"}))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 3, rec.attempts["flaky"])
}

func TestQueueEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{Type: "early"}))
}

func TestQueueEnqueueAfterStopFails(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()

	require.Error(t, q.Enqueue(Job{Type: "late"}))
}

func TestQueueAssignsJobIDs(t *testing.T) {
	got := make(chan Job, 1)
	q := NewQueue("cleanup", func(_ context.Context, job Job) error {
		got <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	select {
	case job := <-got:
		assert.Equal(t, "cleanup-1", job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}
