package notification

import (
	"encoding/json"
	"fmt"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{ChannelEmail, ChannelPush, ChannelSMS}

// IsValidChannel checks whether a channel is recognized.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

// Intent is the ephemeral input to a dispatch call. Title and Message may be
// literal text or dotted translation keys; localized content overrides both
// per locale.
type Intent struct {
	Type             string                      `json:"type,omitempty"`
	Title            string                      `json:"title"`
	Message          string                      `json:"message"`
	DefaultLocale    string                      `json:"default_locale,omitempty"`
	TargetLocale     string                      `json:"target_locale,omitempty"`
	LocalizedContent map[string]LocalizedVariant `json:"localized_content,omitempty"`
	Variables        map[string]any              `json:"variables,omitempty"`
	Metadata         map[string]any              `json:"metadata,omitempty"`

	Email *EmailOptions `json:"email,omitempty"`
	Push  *PushOptions  `json:"push,omitempty"`
	SMS   *SMSOptions   `json:"sms,omitempty"`

	NotifiableType string `json:"notifiable_type,omitempty"`
	NotifiableID   string `json:"notifiable_id,omitempty"`

	// Persist defaults to true when a notifiable reference is present;
	// set to false to skip record keeping for this dispatch.
	Persist    *bool `json:"persist,omitempty"`
	UseQueue   bool  `json:"use_queue,omitempty"`
	MarkAsRead bool  `json:"mark_as_read,omitempty"`
}

// ShouldPersist reports whether this intent wants a durable record.
func (in *Intent) ShouldPersist() bool {
	if in.NotifiableType == "" || in.NotifiableID == "" {
		return false
	}
	return in.Persist == nil || *in.Persist
}

// LocalizedVariant is a per-locale override of title, message, and
// channel-specific payloads. A variant is used only when present for the
// resolved locale; otherwise the intent's base fields apply.
type LocalizedVariant struct {
	Title   string        `json:"title,omitempty"`
	Message string        `json:"message,omitempty"`
	Email   *EmailOptions `json:"email,omitempty"`
	Push    *PushOptions  `json:"push,omitempty"`
}

// EmailOptions carries email channel overrides on an intent.
type EmailOptions struct {
	To       string         `json:"to,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// PushOptions carries push channel overrides on an intent.
type PushOptions struct {
	Tokens  TokenList      `json:"tokens,omitempty"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// SMSOptions carries SMS channel overrides on an intent.
type SMSOptions struct {
	To      string `json:"to,omitempty"`
	Message string `json:"message,omitempty"`
}

// TokenList accepts either a single token string or an array of tokens in
// JSON, since callers routinely pass one device token.
type TokenList []string

func (t *TokenList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*t = nil
		} else {
			*t = TokenList{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("tokens must be a string or array of strings: %w", err)
	}
	*t = TokenList(many)
	return nil
}

// ChannelOutcome is the uniform result of one channel delivery attempt.
type ChannelOutcome struct {
	OK           bool   `json:"ok"`
	Skipped      bool   `json:"skipped,omitempty"`
	SuccessCount int    `json:"success_count,omitempty"`
	FailureCount int    `json:"failure_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SkippedOutcome builds the outcome for a channel that had nothing to send.
// Skipping is not an error for the dispatch as a whole.
func SkippedOutcome(reason string) *ChannelOutcome {
	return &ChannelOutcome{OK: false, Skipped: true, Error: reason}
}

// FailedOutcome builds the outcome for a channel whose delivery failed.
func FailedOutcome(err error) *ChannelOutcome {
	return &ChannelOutcome{OK: false, FailureCount: 1, Error: err.Error()}
}

// SentOutcome builds the outcome for a fully successful delivery.
func SentOutcome(count int) *ChannelOutcome {
	return &ChannelOutcome{OK: true, SuccessCount: count}
}

// EmailMessage is a built email channel payload, ready for the dispatcher.
type EmailMessage struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Body     string         `json:"body,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// PushMessage is a built push channel payload. Tokens may address one device
// or a multicast set.
type PushMessage struct {
	Tokens []string       `json:"tokens"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

// SMSMessage is a built SMS channel payload.
type SMSMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// DispatchResult is the best-effort summary returned to every dispatch
// caller. Channel-level failures are reported here, never raised.
type DispatchResult struct {
	NotificationID string             `json:"notification_id,omitempty"`
	Persisted      bool               `json:"persisted"`
	Queued         bool               `json:"queued,omitempty"`
	JobIDs         map[Channel]string `json:"job_ids,omitempty"`
	Email          *ChannelOutcome    `json:"email,omitempty"`
	Push           *ChannelOutcome    `json:"push,omitempty"`
	SMS            *ChannelOutcome    `json:"sms,omitempty"`
}

// Outcome returns the outcome recorded for a channel, or nil.
func (r *DispatchResult) Outcome(c Channel) *ChannelOutcome {
	switch c {
	case ChannelEmail:
		return r.Email
	case ChannelPush:
		return r.Push
	case ChannelSMS:
		return r.SMS
	}
	return nil
}

func (r *DispatchResult) setOutcome(c Channel, o *ChannelOutcome) {
	switch c {
	case ChannelEmail:
		r.Email = o
	case ChannelPush:
		r.Push = o
	case ChannelSMS:
		r.SMS = o
	}
}

// Recipient is the external recipient contract supplied by collaborators.
type Recipient struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email,omitempty"`
	Locale               string    `json:"locale,omitempty"`
	DeviceTokens         TokenList `json:"device_tokens,omitempty"`
	PhoneNumber          string    `json:"phone_number,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
}
