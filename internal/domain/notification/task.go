package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Asynq task types, one per delivery channel.
const (
	TaskTypeEmailDelivery = "notification:email"
	TaskTypePushDelivery  = "notification:push"
	TaskTypeSMSDelivery   = "notification:sms"
)

// TaskTypeFor maps a channel to its asynq task type.
func TaskTypeFor(c Channel) string {
	switch c {
	case ChannelEmail:
		return TaskTypeEmailDelivery
	case ChannelPush:
		return TaskTypePushDelivery
	case ChannelSMS:
		return TaskTypeSMSDelivery
	}
	return ""
}

// NewDeliveryTask creates an asynq task carrying a channel job.
func NewDeliveryTask(job *ChannelJob) (*asynq.Task, error) {
	taskType := TaskTypeFor(job.Channel)
	if taskType == "" {
		return nil, fmt.Errorf("unsupported channel: %s", job.Channel)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshaling job payload: %w", err)
	}
	return asynq.NewTask(taskType, payload), nil
}

// ParseDeliveryTask deserializes a channel job from a task payload.
func ParseDeliveryTask(data []byte) (*ChannelJob, error) {
	var job ChannelJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job payload: %w", err)
	}
	if !IsValidChannel(job.Channel) {
		return nil, fmt.Errorf("job has unsupported channel: %q", job.Channel)
	}
	return &job, nil
}
