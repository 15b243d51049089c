package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLocale_NoLocalizedContent(t *testing.T) {
	resolved := ResolveLocale(&Intent{Title: "Hello", Message: "World"})

	assert.Equal(t, "en", resolved.Locale)
	assert.Equal(t, "en", resolved.DefaultLocale)
	assert.Equal(t, "Hello", resolved.Title)
	assert.Equal(t, "World", resolved.Message)
}

func TestResolveLocale_TargetVariantWins(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:        "Hello",
		TargetLocale: "FR",
		LocalizedContent: map[string]LocalizedVariant{
			"fr": {Title: "Bonjour"},
			"en": {Title: "Hi"},
		},
	})

	assert.Equal(t, "fr", resolved.Locale, "locale normalization is case-insensitive")
	assert.Equal(t, "Bonjour", resolved.Title)
}

func TestResolveLocale_ContentKeysNormalized(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:        "Hello",
		TargetLocale: "ar",
		LocalizedContent: map[string]LocalizedVariant{
			"AR": {Title: "مرحبا"},
		},
	})

	assert.Equal(t, "ar", resolved.Locale, "uppercase content keys must still match")
	assert.Equal(t, "مرحبا", resolved.Title)
}

func TestResolveLocale_FallsBackToDefaultVariant(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:         "Hello",
		DefaultLocale: "en",
		TargetLocale:  "de",
		LocalizedContent: map[string]LocalizedVariant{
			"en": {Title: "Hi there"},
		},
	})

	assert.Equal(t, "en", resolved.Locale, "reported locale is the variant actually used")
	assert.Equal(t, "Hi there", resolved.Title)
}

func TestResolveLocale_NoVariantMatchDegradesToBase(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:        "Hello",
		Message:      "Base",
		TargetLocale: "de",
		LocalizedContent: map[string]LocalizedVariant{
			"fr": {Title: "Bonjour"},
		},
	})

	assert.Equal(t, "en", resolved.Locale)
	assert.Equal(t, "Hello", resolved.Title)
	assert.Equal(t, "Base", resolved.Message)
}

func TestResolveLocale_VariantPartialOverride(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:        "Hello",
		Message:      "Base message",
		TargetLocale: "fr",
		LocalizedContent: map[string]LocalizedVariant{
			"fr": {Title: "Bonjour"},
		},
	})

	assert.Equal(t, "Bonjour", resolved.Title)
	assert.Equal(t, "Base message", resolved.Message, "unset variant fields keep the base value")
}

func TestResolveLocale_VariantEmailMergesFieldByField(t *testing.T) {
	resolved := ResolveLocale(&Intent{
		Title:        "Hello",
		TargetLocale: "fr",
		Email: &EmailOptions{
			To:      "ada@example.com",
			Subject: "Base subject",
		},
		LocalizedContent: map[string]LocalizedVariant{
			"fr": {Email: &EmailOptions{Subject: "Sujet"}},
		},
	})

	assert.Equal(t, "ada@example.com", resolved.Email.To, "recipient survives a subject-only override")
	assert.Equal(t, "Sujet", resolved.Email.Subject)
}
