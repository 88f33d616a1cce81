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

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("events", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.ID)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	require.Error(t, q.TryEnqueue(Job{ID: "early"}))

	q.Start(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: id}))
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	assert.Error(t, q.TryEnqueue(Job{ID: "late"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("events", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.TryEnqueue(Job{ID: "retry"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRecoversFromPanics(t *testing.T) {
	var calls int32
	q := NewQueue("events", func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		panic("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 0})

	q.Start(context.Background())
	require.NoError(t, q.TryEnqueue(Job{ID: "panic"}))
	q.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueTryEnqueueReportsFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("events", func(_ context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1, DrainTimeout: time.Second})

	q.Start(context.Background())
	require.NoError(t, q.TryEnqueue(Job{ID: "1"}))

	var full bool
	for i := 0; i < 10 && !full; i++ {
		if err := q.TryEnqueue(Job{ID: "n"}); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	assert.True(t, full)
	close(block)
	q.Stop()
}
