package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticenter/internal/domain/notification"
)

func testJob(channel notification.Channel) *notification.ChannelJob {
	return &notification.ChannelJob{
		Channel: channel,
		Push:    &notification.PushMessage{Tokens: []string{"tok"}, Title: "t", Body: "b"},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestMemoryQueue_ConcurrencyBound(t *testing.T) {
	q := NewMemoryQueue(MemoryConfig{MaxAttempts: 1, PollInterval: time.Millisecond})
	defer q.Shutdown()

	const jobs = 100
	const concurrency = 5

	var current, peak, done atomic.Int64
	handler := func(ctx context.Context, job *notification.ChannelJob) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		done.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Process(ctx, notification.ChannelPush, concurrency, handler)

	for i := 0; i < jobs; i++ {
		_, err := q.Enqueue(ctx, testJob(notification.ChannelPush), notification.EnqueueOptions{})
		require.NoError(t, err)
	}

	waitFor(t, 10*time.Second, func() bool { return done.Load() == jobs })

	assert.LessOrEqual(t, peak.Load(), int64(concurrency),
		"no more than %d handlers may run at any instant", concurrency)

	stats, err := q.Stats(ctx, notification.ChannelPush)
	require.NoError(t, err)
	assert.Equal(t, jobs, stats.Completed)
	assert.Zero(t, stats.Waiting)
	assert.Zero(t, stats.Failed)
}

func TestMemoryQueue_RetryTermination(t *testing.T) {
	const maxAttempts = 3

	q := NewMemoryQueue(MemoryConfig{
		MaxAttempts:  maxAttempts,
		BackoffBase:  time.Millisecond,
		PollInterval: time.Millisecond,
	})
	defer q.Shutdown()

	var attempts atomic.Int64
	handler := func(ctx context.Context, job *notification.ChannelJob) error {
		attempts.Add(1)
		return errors.New("provider down")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Process(ctx, notification.ChannelEmail, 2, handler)

	_, err := q.Enqueue(ctx, testJob(notification.ChannelEmail), notification.EnqueueOptions{})
	require.NoError(t, err)

	waitFor(t, 5*time.Second, func() bool {
		stats, _ := q.Stats(ctx, notification.ChannelEmail)
		return stats.Failed == 1
	})

	// Give any extra (buggy) retry a chance to show up.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(maxAttempts), attempts.Load(),
		"an always-failing handler runs exactly maxAttempts times")

	stats, err := q.Stats(ctx, notification.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.Waiting)
}

func TestMemoryQueue_PriorityBeforeFIFO(t *testing.T) {
	q := NewMemoryQueue(MemoryConfig{MaxAttempts: 1, PollInterval: time.Millisecond})
	defer q.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var order []string
	handler := func(ctx context.Context, job *notification.ChannelJob) error {
		mu.Lock()
		order = append(order, job.Source)
		mu.Unlock()
		return nil
	}

	// Enqueue before starting the worker so ordering is deterministic.
	for _, j := range []struct {
		source   string
		priority int
	}{
		{"low-1", 0},
		{"low-2", 0},
		{"high", 9},
	} {
		job := testJob(notification.ChannelSMS)
		job.Source = j.source
		_, err := q.Enqueue(ctx, job, notification.EnqueueOptions{Priority: j.priority})
		require.NoError(t, err)
	}

	// concurrency=1 serializes execution in claim order.
	go q.Process(ctx, notification.ChannelSMS, 1, handler)

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "low-1", "low-2"}, order)
}

func TestMemoryQueue_DelayedJobNotRunEarly(t *testing.T) {
	q := NewMemoryQueue(MemoryConfig{MaxAttempts: 1, PollInterval: time.Millisecond})
	defer q.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran atomic.Bool
	go q.Process(ctx, notification.ChannelEmail, 1, func(ctx context.Context, job *notification.ChannelJob) error {
		ran.Store(true)
		return nil
	})

	_, err := q.Enqueue(ctx, testJob(notification.ChannelEmail), notification.EnqueueOptions{Delay: 80 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load(), "delayed job must not run before its delay")

	waitFor(t, 5*time.Second, func() bool { return ran.Load() })
}

func TestMemoryQueue_Clear(t *testing.T) {
	q := NewMemoryQueue(MemoryConfig{MaxAttempts: 1})
	defer q.Shutdown()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, testJob(notification.ChannelPush), notification.EnqueueOptions{})
		require.NoError(t, err)
	}

	require.NoError(t, q.Clear(ctx, notification.ChannelPush))

	stats, err := q.Stats(ctx, notification.ChannelPush)
	require.NoError(t, err)
	assert.Zero(t, stats.Waiting)
	assert.Zero(t, stats.Completed)
}

func TestMemoryQueue_ChannelsIndependent(t *testing.T) {
	q := NewMemoryQueue(MemoryConfig{MaxAttempts: 1})
	defer q.Shutdown()

	ctx := context.Background()
	_, err := q.Enqueue(ctx, testJob(notification.ChannelPush), notification.EnqueueOptions{})
	require.NoError(t, err)

	pushStats, err := q.Stats(ctx, notification.ChannelPush)
	require.NoError(t, err)
	emailStats, err := q.Stats(ctx, notification.ChannelEmail)
	require.NoError(t, err)

	assert.Equal(t, 1, pushStats.Waiting)
	assert.Zero(t, emailStats.Waiting)
}
