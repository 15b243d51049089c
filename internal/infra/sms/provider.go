package sms

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the transport strategy behind the SMS dispatcher. Each
// implementation talks to one upstream (Twilio, SNS, or a local stub).
type Provider interface {
	// Name identifies the provider in logs and outcomes.
	Name() string
	// Send delivers one text message and returns a provider message ID.
	Send(ctx context.Context, to, body string) (string, error)
}

// ProviderConfig selects and configures an SMS provider.
type ProviderConfig struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	AWSRegion   string
	SNSSenderID string
}

// NewProviderFromConfig builds the configured provider. An unknown
// provider name is a configuration error, not a silent stub fallback.
func NewProviderFromConfig(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "stub":
		return NewStubProvider(), nil
	case "twilio":
		return NewTwilioProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	case "sns":
		return NewSNSProvider(ctx, cfg.AWSRegion, cfg.SNSSenderID)
	default:
		return nil, fmt.Errorf("unknown sms provider: %s", cfg.Provider)
	}
}

// NormalizeNumber canonicalizes a phone number to E.164-ish form: digits
// only, one leading plus.
func NormalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}
