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
	processed := make(chan string, 3)
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		processed <- job.ID
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})

	queue.Start(context.Background())
	defer queue.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Enqueue(Job{ID: id, Type: "noop"}))
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case id := <-processed:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Len(t, seen, 3)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: time.Millisecond})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		calls.Add(1)
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	queue.Start(context.Background())
	require.NoError(t, queue.Enqueue(Job{ID: "doomed"}))

	// initial attempt plus two retries
	assert.Eventually(t, func() bool { return calls.Load() == 3 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	queue.Stop()
}

func TestQueueStopDrainsBuffer(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		processed = append(processed, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})

	queue.Start(context.Background())
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, queue.Enqueue(Job{ID: id}))
	}
	queue.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, processed, 5)
}

func TestQueueEnqueueLifecycle(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil },
		QueueConfig{Workers: 1})

	err := queue.Enqueue(Job{ID: "early"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")

	queue.Start(context.Background())
	require.NoError(t, queue.Enqueue(Job{ID: "ok"}))

	queue.Stop()
	err = queue.Enqueue(Job{ID: "late"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped")
}

func TestQueueConfigDefaults(t *testing.T) {
	queue := NewQueue("test", nil, QueueConfig{})
	assert.Equal(t, 1, queue.cfg.Workers)
	assert.Equal(t, 4, queue.cfg.BufferSize)
	assert.Equal(t, 3, queue.cfg.MaxRetries)
	assert.Equal(t, time.Second, queue.cfg.RetryDelay)
	assert.NotNil(t, queue.cfg.Logger)
}
