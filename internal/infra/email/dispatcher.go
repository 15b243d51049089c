package email

import (
	"context"

	"noticenter/internal/domain/notification"
)

var _ notification.EmailDispatcher = (*Dispatcher)(nil)

// Dispatcher is the email channel adapter: it renders the payload through
// the layout engine and delivers it over the Resend transport. Transport
// and rendering failures come back as failed outcomes, never as panics or
// errors crossing the dispatcher boundary.
type Dispatcher struct {
	client   *ResendClient
	renderer notification.TemplateRenderer
}

// NewDispatcher creates the email channel dispatcher. The renderer may be
// nil when no named templates are used.
func NewDispatcher(client *ResendClient, renderer notification.TemplateRenderer) *Dispatcher {
	return &Dispatcher{client: client, renderer: renderer}
}

// SendEmail delivers one email payload.
func (d *Dispatcher) SendEmail(ctx context.Context, msg *notification.EmailMessage) *notification.ChannelOutcome {
	if msg == nil || msg.To == "" {
		return notification.SkippedOutcome("no email recipient")
	}
	if !d.client.Configured() {
		return &notification.ChannelOutcome{
			OK:           false,
			FailureCount: 1,
			Error:        "email provider misconfigured: resend api key is not set",
		}
	}

	html := msg.Body
	text := ""

	if msg.Template != "" {
		// Unresolvable named templates are a hard error, not a skip.
		if d.renderer == nil {
			return &notification.ChannelOutcome{
				OK:           false,
				FailureCount: 1,
				Error:        "email template requested but no renderer is configured",
			}
		}

		data := msg.Data
		if data == nil {
			data = map[string]any{}
		}
		if _, ok := data["subject"]; !ok {
			data["subject"] = msg.Subject
		}
		if _, ok := data["body"]; !ok {
			data["body"] = msg.Body
		}

		var err error
		html, text, err = d.renderer.Render(msg.Template, data)
		if err != nil {
			return notification.FailedOutcome(err)
		}
	}

	if _, err := d.client.Send(ctx, msg.To, msg.Subject, html, text); err != nil {
		return notification.FailedOutcome(err)
	}

	return notification.SentOutcome(1)
}
