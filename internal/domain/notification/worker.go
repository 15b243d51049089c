package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"noticenter/internal/metrics"
)

// Worker processes channel delivery jobs from the queue. It sends through
// the matching dispatcher and back-fills the outcome into the persisted
// record, so queued dispatches end up with the same audit trail as sync
// ones.
type Worker struct {
	store NotificationStore
	email EmailDispatcher
	push  PushDispatcher
	sms   SMSDispatcher
}

// NewWorker creates a delivery worker. The store may be nil when running
// without persistence.
func NewWorker(store NotificationStore, email EmailDispatcher, push PushDispatcher, sms SMSDispatcher) *Worker {
	return &Worker{store: store, email: email, push: push, sms: sms}
}

// ProcessJob handles one channel delivery job. A returned error signals the
// queue to retry; skipped and validation outcomes return nil so they are
// never retried.
func (w *Worker) ProcessJob(ctx context.Context, job *ChannelJob) error {
	start := time.Now()

	outcome := w.send(ctx, job)

	metrics.RecordDelivery(string(job.Channel), deliveryStatus(outcome))
	metrics.ObserveDeliveryLatency(string(job.Channel), time.Since(start))

	w.writeBack(ctx, job, outcome)

	if outcome.OK || outcome.Skipped {
		slog.Info("notification delivered",
			"channel", job.Channel,
			"record_id", job.RecordID,
			"source", job.Source,
			"skipped", outcome.Skipped,
			"success_count", outcome.SuccessCount,
			"failure_count", outcome.FailureCount,
			"duration", time.Since(start),
		)
		return nil
	}

	slog.Error("notification delivery failed",
		"channel", job.Channel,
		"record_id", job.RecordID,
		"source", job.Source,
		"error", outcome.Error,
		"duration", time.Since(start),
	)
	return fmt.Errorf("%s delivery failed: %s", job.Channel, outcome.Error)
}

func (w *Worker) send(ctx context.Context, job *ChannelJob) *ChannelOutcome {
	switch job.Channel {
	case ChannelEmail:
		if job.Email == nil {
			return SkippedOutcome("job carries no email payload")
		}
		return w.email.SendEmail(ctx, job.Email)
	case ChannelPush:
		if job.Push == nil {
			return SkippedOutcome("job carries no push payload")
		}
		return w.push.SendPush(ctx, job.Push)
	case ChannelSMS:
		if job.SMS == nil {
			return SkippedOutcome("job carries no sms payload")
		}
		return w.sms.SendSMS(ctx, job.SMS)
	}
	return SkippedOutcome(fmt.Sprintf("unsupported channel: %s", job.Channel))
}

// writeBack records the outcome on the persisted record. Failures here are
// logged only: record keeping never blocks or retries deliveries.
func (w *Worker) writeBack(ctx context.Context, job *ChannelJob, outcome *ChannelOutcome) {
	if w.store == nil || job.RecordID == "" {
		return
	}
	if err := w.store.SetChannelOutcome(ctx, job.RecordID, job.Channel, outcome); err != nil {
		slog.Error("writing channel outcome back failed",
			"record_id", job.RecordID,
			"channel", job.Channel,
			"error", err,
		)
	}
}
