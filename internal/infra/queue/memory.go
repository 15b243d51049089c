package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"noticenter/internal/domain/notification"

	"github.com/google/uuid"
)

var _ notification.JobQueue = (*MemoryQueue)(nil)

// MemoryConfig holds in-memory queue settings.
type MemoryConfig struct {
	// MaxAttempts is the total number of attempts per job.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration

	// RetentionCount bounds how many completed and failed jobs are
	// retained per channel for inspection.
	RetentionCount int

	// StallTimeout requeues jobs whose worker stopped reporting.
	// Zero disables stalled-job detection.
	StallTimeout time.Duration

	// PollInterval is how often idle workers look for ready jobs.
	PollInterval time.Duration
}

// MemoryQueue is an in-process implementation of the queue contract, used
// for development and tests. It honors the same semantics as the Redis
// deployment: per-channel bounded worker pools, priority then FIFO
// ordering, exponential retry backoff, bounded retention, and stalled-job
// requeueing.
type MemoryQueue struct {
	cfg      MemoryConfig
	mu       sync.Mutex
	channels map[notification.Channel]*memChannel
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type memChannel struct {
	pending   []*memJob
	active    map[string]*memJob
	retained  []*memJob // terminal jobs, newest last, bounded
	seq       uint64
	completed int
	failed    int
}

type jobState string

const (
	jobStateCompleted jobState = "completed"
	jobStateFailed    jobState = "failed"
)

type memJob struct {
	id          string
	job         *notification.ChannelJob
	priority    int
	seq         uint64
	attempts    int
	availableAt time.Time
	startedAt   time.Time
	state       jobState
	lastError   string
}

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(cfg MemoryConfig) *MemoryQueue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	return &MemoryQueue{
		cfg:      cfg,
		channels: make(map[notification.Channel]*memChannel),
		stopCh:   make(chan struct{}),
	}
}

func (q *MemoryQueue) channel(c notification.Channel) *memChannel {
	ch, ok := q.channels[c]
	if !ok {
		ch = &memChannel{active: make(map[string]*memJob)}
		q.channels[c] = ch
	}
	return ch
}

// Enqueue adds a job to its channel's queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *notification.ChannelJob, opts notification.EnqueueOptions) (string, error) {
	if !notification.IsValidChannel(job.Channel) {
		return "", fmt.Errorf("unsupported channel: %s", job.Channel)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.stopCh:
		return "", fmt.Errorf("queue is shut down")
	default:
	}

	ch := q.channel(job.Channel)
	ch.seq++

	mj := &memJob{
		id:          uuid.New().String(),
		job:         job,
		priority:    opts.Priority,
		seq:         ch.seq,
		availableAt: time.Now().Add(opts.Delay),
	}
	ch.pending = append(ch.pending, mj)

	return mj.id, nil
}

// Process starts a bounded worker pool for one channel. At most
// `concurrency` handler invocations run at any instant. Blocks until
// Shutdown; call in a goroutine.
func (q *MemoryQueue) Process(ctx context.Context, channel notification.Channel, concurrency int, handler notification.JobHandler) {
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.requeueStalled(channel)
			q.fill(ctx, channel, sem, handler)
		}
	}
}

// fill hands ready jobs to workers until the pool saturates or the channel
// runs dry.
func (q *MemoryQueue) fill(ctx context.Context, channel notification.Channel, sem chan struct{}, handler notification.JobHandler) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return // pool saturated
		}

		mj := q.claimNext(channel)
		if mj == nil {
			<-sem
			return
		}

		q.wg.Add(1)
		go func(mj *memJob) {
			defer q.wg.Done()
			defer func() { <-sem }()
			q.runJob(ctx, channel, mj, handler)
		}(mj)
	}
}

// claimNext pops the ready job with the highest priority, FIFO within equal
// priority, and marks it active.
func (q *MemoryQueue) claimNext(channel notification.Channel) *memJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := q.channel(channel)
	now := time.Now()

	bestIdx := -1
	for i, mj := range ch.pending {
		if mj.availableAt.After(now) {
			continue
		}
		if bestIdx == -1 ||
			mj.priority > ch.pending[bestIdx].priority ||
			(mj.priority == ch.pending[bestIdx].priority && mj.seq < ch.pending[bestIdx].seq) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}

	mj := ch.pending[bestIdx]
	ch.pending = append(ch.pending[:bestIdx], ch.pending[bestIdx+1:]...)
	mj.startedAt = now
	ch.active[mj.id] = mj
	return mj
}

// runJob executes the handler and settles the job: completed, scheduled for
// retry with exponential backoff, or terminally failed after the attempt
// budget is spent.
func (q *MemoryQueue) runJob(ctx context.Context, channel notification.Channel, mj *memJob, handler notification.JobHandler) {
	err := handler(ctx, mj.job)

	q.mu.Lock()
	defer q.mu.Unlock()

	ch := q.channel(channel)
	if _, stillActive := ch.active[mj.id]; !stillActive {
		// A stall sweep already requeued this job; drop this result to
		// avoid double settling.
		return
	}
	delete(ch.active, mj.id)
	mj.attempts++

	if err == nil {
		mj.state = jobStateCompleted
		ch.completed++
		q.retain(ch, mj)
		return
	}

	mj.lastError = err.Error()
	if mj.attempts >= q.cfg.MaxAttempts {
		mj.state = jobStateFailed
		ch.failed++
		q.retain(ch, mj)
		slog.Error("job failed terminally",
			"channel", channel,
			"job_id", mj.id,
			"attempts", mj.attempts,
			"error", err,
		)
		return
	}

	backoff := q.cfg.BackoffBase * (1 << uint(mj.attempts-1))
	mj.availableAt = time.Now().Add(backoff)
	ch.pending = append(ch.pending, mj)
}

func (q *MemoryQueue) retain(ch *memChannel, mj *memJob) {
	ch.retained = append(ch.retained, mj)
	if len(ch.retained) > q.cfg.RetentionCount {
		ch.retained = ch.retained[len(ch.retained)-q.cfg.RetentionCount:]
	}
}

// requeueStalled returns jobs whose worker stopped making progress to the
// pending set. Liveness guard only; the job may still complete twice.
func (q *MemoryQueue) requeueStalled(channel notification.Channel) {
	if q.cfg.StallTimeout <= 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch := q.channel(channel)
	cutoff := time.Now().Add(-q.cfg.StallTimeout)
	for id, mj := range ch.active {
		if mj.startedAt.Before(cutoff) {
			delete(ch.active, id)
			mj.availableAt = time.Now()
			ch.pending = append(ch.pending, mj)
			slog.Warn("requeued stalled job", "channel", channel, "job_id", id)
		}
	}
}

// Stats reports queue depth and terminal counts for a channel.
func (q *MemoryQueue) Stats(ctx context.Context, channel notification.Channel) (*notification.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := q.channel(channel)
	return &notification.QueueStats{
		Waiting:   len(ch.pending),
		Active:    len(ch.active),
		Completed: ch.completed,
		Failed:    ch.failed,
	}, nil
}

// Clear removes all jobs and retained history for a channel.
func (q *MemoryQueue) Clear(ctx context.Context, channel notification.Channel) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.channels[channel] = &memChannel{active: make(map[string]*memJob)}
	return nil
}

// Shutdown stops all processing loops and waits for in-flight handlers.
func (q *MemoryQueue) Shutdown() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}
