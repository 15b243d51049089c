package notification

import "noticenter/internal/i18n"

// ResolvedContent is the output of locale resolution for one dispatch:
// the effective locale plus the content and channel overrides that apply.
type ResolvedContent struct {
	Locale        string
	DefaultLocale string
	Title         string
	Message       string
	Email         *EmailOptions
	Push          *PushOptions
}

// ResolveLocale picks the effective locale and content variant for an
// intent. Absence of localized content is a normal path that degrades to
// the intent's base strings, so callers never need locale data to dispatch.
//
// The reported locale is the locale of whichever variant was actually used;
// when no variant matched, the default locale is reported.
func ResolveLocale(in *Intent) *ResolvedContent {
	defaultLocale := i18n.NormalizeLocale(in.DefaultLocale)
	if defaultLocale == "" {
		defaultLocale = i18n.DefaultLocale
	}
	targetLocale := i18n.NormalizeLocale(in.TargetLocale)
	if targetLocale == "" {
		targetLocale = defaultLocale
	}

	out := &ResolvedContent{
		Locale:        defaultLocale,
		DefaultLocale: defaultLocale,
		Title:         in.Title,
		Message:       in.Message,
		Email:         in.Email,
	}

	variant, usedLocale := pickVariant(in.LocalizedContent, targetLocale, defaultLocale)
	if variant == nil {
		return out
	}

	out.Locale = usedLocale
	if variant.Title != "" {
		out.Title = variant.Title
	}
	if variant.Message != "" {
		out.Message = variant.Message
	}
	if variant.Email != nil {
		out.Email = mergeEmailOptions(in.Email, variant.Email)
	}
	if variant.Push != nil {
		out.Push = variant.Push
	}

	return out
}

// pickVariant tries the target locale, then the default locale. Content
// keys are normalized before lookup, matching the already-normalized
// target and fallback.
func pickVariant(content map[string]LocalizedVariant, target, fallback string) (*LocalizedVariant, string) {
	if len(content) == 0 {
		return nil, ""
	}

	normalized := make(map[string]LocalizedVariant, len(content))
	for locale, v := range content {
		normalized[i18n.NormalizeLocale(locale)] = v
	}

	if v, ok := normalized[target]; ok {
		return &v, target
	}
	if v, ok := normalized[fallback]; ok {
		return &v, fallback
	}
	return nil, ""
}

// mergeEmailOptions overlays a variant's email override on the intent's.
// Variant fields win field by field so a variant can localize just the
// subject while the intent keeps the recipient.
func mergeEmailOptions(base, override *EmailOptions) *EmailOptions {
	if base == nil {
		return override
	}
	merged := *base
	if override.To != "" {
		merged.To = override.To
	}
	if override.Subject != "" {
		merged.Subject = override.Subject
	}
	if override.Body != "" {
		merged.Body = override.Body
	}
	if override.Template != "" {
		merged.Template = override.Template
	}
	if override.Data != nil {
		merged.Data = override.Data
	}
	return &merged
}
