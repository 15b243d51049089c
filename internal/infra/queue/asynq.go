package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"noticenter/internal/domain/notification"

	"github.com/hibiken/asynq"
)

var _ notification.JobQueue = (*Manager)(nil)

// Config holds queue manager settings.
type Config struct {
	// Concurrency is the worker pool size per channel queue.
	Concurrency map[notification.Channel]int

	// MaxAttempts is the total number of delivery attempts per job,
	// including the first one.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration

	// CompletedRetention is how long completed jobs stay inspectable.
	CompletedRetention time.Duration
}

// Manager is the Redis-backed queue manager: one logical queue per channel,
// plus a weighted critical queue per channel for prioritized jobs. Its
// lifecycle is explicit; construct once at process start, Shutdown on exit.
type Manager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redisOpt  asynq.RedisClientOpt
	cfg       Config
	servers   []*asynq.Server
}

// NewManager creates a queue manager connected to Redis.
func NewManager(redisAddr, password string, db int, cfg Config) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = 24 * time.Hour
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	}

	return &Manager{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redisOpt:  redisOpt,
		cfg:       cfg,
	}
}

func queueName(c notification.Channel) string {
	return string(c)
}

func criticalQueueName(c notification.Channel) string {
	return string(c) + ":critical"
}

// Enqueue adds a channel job to its queue. Priority above zero routes the
// job to the channel's critical queue, which workers drain preferentially.
func (m *Manager) Enqueue(ctx context.Context, job *notification.ChannelJob, opts notification.EnqueueOptions) (string, error) {
	task, err := notification.NewDeliveryTask(job)
	if err != nil {
		return "", fmt.Errorf("creating delivery task: %w", err)
	}

	qname := queueName(job.Channel)
	if opts.Priority > 0 {
		qname = criticalQueueName(job.Channel)
	}

	taskOpts := []asynq.Option{
		asynq.Queue(qname),
		asynq.MaxRetry(m.cfg.MaxAttempts - 1),
		asynq.Retention(m.cfg.CompletedRetention),
	}
	if opts.Delay > 0 {
		taskOpts = append(taskOpts, asynq.ProcessIn(opts.Delay))
	}

	info, err := m.client.EnqueueContext(ctx, task, taskOpts...)
	if err != nil {
		return "", fmt.Errorf("enqueuing %s job: %w", job.Channel, err)
	}

	return info.ID, nil
}

// Stats reports queue depth and terminal counts for a channel, summed over
// the channel's normal and critical queues.
func (m *Manager) Stats(ctx context.Context, channel notification.Channel) (*notification.QueueStats, error) {
	stats := &notification.QueueStats{}

	for _, qname := range []string{queueName(channel), criticalQueueName(channel)} {
		info, err := m.inspector.GetQueueInfo(qname)
		if err != nil {
			// A queue that never saw a job is not an error.
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, fmt.Errorf("inspecting queue %s: %w", qname, err)
		}
		stats.Waiting += info.Pending + info.Scheduled + info.Retry
		stats.Active += info.Active
		stats.Completed += info.Completed
		stats.Failed += info.Archived
	}

	return stats, nil
}

// Clear removes all jobs, waiting and retained, for a channel.
func (m *Manager) Clear(ctx context.Context, channel notification.Channel) error {
	for _, qname := range []string{queueName(channel), criticalQueueName(channel)} {
		for _, del := range []func(string) (int, error){
			m.inspector.DeleteAllPendingTasks,
			m.inspector.DeleteAllScheduledTasks,
			m.inspector.DeleteAllRetryTasks,
			m.inspector.DeleteAllArchivedTasks,
			m.inspector.DeleteAllCompletedTasks,
		} {
			if _, err := del(qname); err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
				return fmt.Errorf("clearing queue %s: %w", qname, err)
			}
		}
	}
	return nil
}

// StartWorkers runs one asynq server per channel, each with its own
// concurrency, all feeding the given handler. asynq's concurrency setting
// is per server, so per-channel servers are what give each channel an
// independently bounded worker pool.
func (m *Manager) StartWorkers(handler notification.JobHandler) error {
	for _, channel := range notification.Channels {
		concurrency := m.cfg.Concurrency[channel]
		if concurrency <= 0 {
			concurrency = 5
		}

		srv := asynq.NewServer(m.redisOpt, asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				criticalQueueName(channel): 3,
				queueName(channel):         1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				if n < 1 {
					n = 1
				}
				return m.cfg.BackoffBase * (1 << uint(n-1))
			},
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(notification.TaskTypeFor(channel), func(ctx context.Context, task *asynq.Task) error {
			job, err := notification.ParseDeliveryTask(task.Payload())
			if err != nil {
				// Malformed payloads never become deliverable; skip
				// retries and archive immediately.
				return fmt.Errorf("%w: %s", asynq.SkipRetry, err.Error())
			}
			return handler(ctx, job)
		})

		if err := srv.Start(mux); err != nil {
			m.Shutdown()
			return fmt.Errorf("starting %s worker: %w", channel, err)
		}

		m.servers = append(m.servers, srv)
		slog.Info("channel workers started", "channel", channel, "concurrency", concurrency)
	}

	return nil
}

// Shutdown stops all channel servers, waiting for in-flight jobs, then
// closes the client connections.
func (m *Manager) Shutdown() {
	for _, srv := range m.servers {
		srv.Shutdown()
	}
	m.servers = nil
	_ = m.client.Close()
	_ = m.inspector.Close()
}
