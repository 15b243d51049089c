package sms

import (
	"context"

	"noticenter/internal/domain/notification"
)

var _ notification.SMSDispatcher = (*Dispatcher)(nil)

// Dispatcher is the SMS channel adapter. The provider strategy decides the
// upstream; the dispatcher owns number normalization and outcome mapping.
type Dispatcher struct {
	provider Provider
}

// NewDispatcher creates the SMS channel dispatcher.
func NewDispatcher(provider Provider) *Dispatcher {
	return &Dispatcher{provider: provider}
}

// SendSMS delivers one text message.
func (d *Dispatcher) SendSMS(ctx context.Context, msg *notification.SMSMessage) *notification.ChannelOutcome {
	if msg == nil || msg.To == "" {
		return notification.SkippedOutcome("no phone number on file")
	}
	if d.provider == nil {
		return &notification.ChannelOutcome{
			OK:           false,
			FailureCount: 1,
			Error:        "sms provider misconfigured: no provider selected",
		}
	}

	to := NormalizeNumber(msg.To)
	if to == "" {
		return notification.SkippedOutcome("phone number contains no digits")
	}

	if _, err := d.provider.Send(ctx, to, msg.Body); err != nil {
		return notification.FailedOutcome(err)
	}

	return notification.SentOutcome(1)
}
