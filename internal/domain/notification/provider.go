package notification

import "context"

// Channel dispatchers are uniform, stateless-per-call adapters over
// provider-specific transports. Provider absence or misconfiguration never
// propagates past the dispatcher boundary; it comes back as ok=false with
// an error message in the outcome.

// EmailDispatcher delivers rendered email payloads.
type EmailDispatcher interface {
	SendEmail(ctx context.Context, msg *EmailMessage) *ChannelOutcome
}

// PushDispatcher delivers push payloads to one or many device tokens.
// An empty token list short-circuits to a skipped outcome without touching
// the provider. Partial multicast failure is reported through the aggregate
// counts, not as a total failure.
type PushDispatcher interface {
	SendPush(ctx context.Context, msg *PushMessage) *ChannelOutcome
}

// SMSDispatcher delivers SMS payloads through the configured provider
// strategy.
type SMSDispatcher interface {
	SendSMS(ctx context.Context, msg *SMSMessage) *ChannelOutcome
}

// TemplateRenderer renders a named email template through the layout
// composition. An unknown template name is a hard error, never a skip.
type TemplateRenderer interface {
	Render(templateName string, data map[string]any) (html, text string, err error)
}
