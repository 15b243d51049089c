package notification

import (
	"context"
	"time"
)

// ChannelJob is one queued unit of work: a single channel delivery attempt.
// Jobs are self-contained so a worker can send without loading anything,
// and carry the record ID so outcomes can be written back.
type ChannelJob struct {
	Channel Channel `json:"channel"`

	Email *EmailMessage `json:"email,omitempty"`
	Push  *PushMessage  `json:"push,omitempty"`
	SMS   *SMSMessage   `json:"sms,omitempty"`

	// RecordID is empty for non-persisted dispatches.
	RecordID     string `json:"record_id,omitempty"`
	NotifiableID string `json:"notifiable_id,omitempty"`
	Source       string `json:"source,omitempty"`
}

// EnqueueOptions tune a single enqueue call.
type EnqueueOptions struct {
	// Delay postpones the job's first execution.
	Delay time.Duration

	// Priority orders jobs within a channel queue; higher runs first.
	// Jobs of equal priority run FIFO.
	Priority int
}

// QueueStats is the operational snapshot of one channel queue.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobHandler processes one job. A non-nil return means the delivery failed
// and the queue should retry (up to its attempt limit).
type JobHandler func(ctx context.Context, job *ChannelJob) error

// JobQueue is the durable queue contract: one logical queue per channel,
// each with its own bounded worker pool. Jobs are processed at least once;
// a crash between send and acknowledge can duplicate a delivery.
type JobQueue interface {
	// Enqueue adds a job to its channel's queue and returns the job ID.
	Enqueue(ctx context.Context, job *ChannelJob, opts EnqueueOptions) (string, error)

	// Stats reports queue depth and terminal counts for a channel.
	Stats(ctx context.Context, channel Channel) (*QueueStats, error)

	// Clear removes all jobs (waiting and retained) for a channel.
	Clear(ctx context.Context, channel Channel) error
}
