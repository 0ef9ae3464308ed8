package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&processed))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "x"})
	assert.ErrorIs(t, err, ErrQueueNotStarted)
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	var attempts int32
	succeeded := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("flaky")
		}
		close(succeeded)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))
	select {
	case <-succeeded:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueuePermanentFailureSkipsRetries(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var failed []error
	reported := make(chan struct{})

	q := NewQueue("permanent", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return Permanent(errors.New("bad input"))
	}, QueueConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		OnFailure: func(_ Job, err error) {
			mu.Lock()
			failed = append(failed, err)
			mu.Unlock()
			close(reported)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "p"}))
	select {
	case <-reported:
	case <-time.After(2 * time.Second):
		t.Fatal("failure not reported")
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 1)
	assert.True(t, IsPermanent(failed[0]))
	assert.EqualError(t, failed[0], "bad input")
}

func TestQueueExhaustedRetriesReportFailure(t *testing.T) {
	var attempts int32
	reported := make(chan Job, 1)
	q := NewQueue("exhaust", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("still down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnFailure:  func(job Job, _ error) { reported <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "e"}))
	select {
	case job := <-reported:
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("failure not reported")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueStopFailsBufferedJobs(t *testing.T) {
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var failed []string

	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-ctx.Done()
		return nil
	}, QueueConfig{
		Workers:    1,
		BufferSize: 4,
		OnFailure: func(job Job, err error) {
			assert.ErrorIs(t, err, ErrQueueStopped)
			mu.Lock()
			failed = append(failed, job.ID)
			mu.Unlock()
		},
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "waiting-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "waiting-2"}))

	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"waiting-1", "waiting-2"}, failed)
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueStopped)
}

func TestQueueStopFailsPendingRetries(t *testing.T) {
	reported := make(chan error, 1)
	attempted := make(chan struct{}, 1)
	q := NewQueue("pending", func(context.Context, Job) error {
		attempted <- struct{}{}
		return errors.New("down")
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: time.Hour,
		OnFailure:  func(_ Job, err error) { reported <- err },
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "r"}))
	<-attempted

	q.Stop()
	select {
	case err := <-reported:
		assert.ErrorIs(t, err, ErrQueueStopped)
	default:
		t.Fatal("pending retry was not reported")
	}
}

func TestPermanentNil(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("plain")))
}
