package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

// DefaultLocale is used when a dispatch carries no locale information.
const DefaultLocale = "en"

// Catalog holds flattened translations per locale.
// Lookups read an immutable snapshot; AddTranslations builds a new
// snapshot and swaps it atomically, so readers never see a partial map.
type Catalog struct {
	snapshot      atomic.Pointer[catalogSnapshot]
	defaultLocale string
}

// catalogSnapshot is one immutable version of the catalog.
// Keys are already flattened to "messages.orders.shipped.title" form.
type catalogSnapshot struct {
	translations map[string]map[string]string
	version      uint64
}

// NewCatalog creates an empty catalog with the given default locale.
func NewCatalog(defaultLocale string) *Catalog {
	c := &Catalog{defaultLocale: NormalizeLocale(defaultLocale)}
	if c.defaultLocale == "" {
		c.defaultLocale = DefaultLocale
	}
	c.snapshot.Store(&catalogSnapshot{translations: map[string]map[string]string{}})
	return c
}

// LoadDir reads every <locale>.json file in dir into the catalog.
// Each file holds an arbitrarily nested string map which is flattened on load.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading locales dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		locale := strings.TrimSuffix(entry.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading locale file %s: %w", entry.Name(), err)
		}

		var nested map[string]any
		if err := json.Unmarshal(data, &nested); err != nil {
			return fmt.Errorf("parsing locale file %s: %w", entry.Name(), err)
		}

		c.AddTranslations(locale, nested)
	}

	return nil
}

// AddTranslations merges a nested translation map for a locale into the
// catalog. The nested map is flattened once here so lookups stay O(1).
// Safe to call while other goroutines translate concurrently.
func (c *Catalog) AddTranslations(locale string, nested map[string]any) {
	locale = NormalizeLocale(locale)
	flat := map[string]string{}
	flatten("", nested, flat)

	for {
		old := c.snapshot.Load()

		next := &catalogSnapshot{
			translations: make(map[string]map[string]string, len(old.translations)+1),
			version:      old.version + 1,
		}
		for l, m := range old.translations {
			next.translations[l] = m
		}

		merged := make(map[string]string, len(next.translations[locale])+len(flat))
		for k, v := range next.translations[locale] {
			merged[k] = v
		}
		for k, v := range flat {
			merged[k] = v
		}
		next.translations[locale] = merged

		if c.snapshot.CompareAndSwap(old, next) {
			return
		}
	}
}

// flatten walks a nested map and writes dotted keys into out.
// Non-string leaves are formatted with %v so numeric templates survive.
func flatten(prefix string, nested map[string]any, out map[string]string) {
	for k, v := range nested {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}

// DefaultLocaleCode returns the catalog's default locale.
func (c *Catalog) DefaultLocaleCode() string {
	return c.defaultLocale
}

// Locales returns the sorted list of locales with at least one translation.
func (c *Catalog) Locales() []string {
	snap := c.snapshot.Load()
	locales := make([]string, 0, len(snap.translations))
	for l := range snap.translations {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Has reports whether a key exists for the exact locale (no fallback).
func (c *Catalog) Has(locale, key string) bool {
	snap := c.snapshot.Load()
	_, ok := snap.translations[NormalizeLocale(locale)][key]
	return ok
}

// Translate resolves a key for the given locale and interpolates variables.
// Fallback chain: exact locale, base language (en-us -> en), default locale,
// and finally the key itself. Missing keys never error.
func (c *Catalog) Translate(key, locale string, vars map[string]any) string {
	tmpl, _ := c.lookup(key, locale)
	return Interpolate(tmpl, vars)
}

// Lookup resolves a key through the fallback chain and reports which locale
// actually supplied the template. Falls back to the key itself with the
// default locale reported.
func (c *Catalog) Lookup(key, locale string) (template, usedLocale string) {
	return c.lookup(key, locale)
}

func (c *Catalog) lookup(key, locale string) (string, string) {
	snap := c.snapshot.Load()
	locale = NormalizeLocale(locale)
	if locale == "" {
		locale = c.defaultLocale
	}

	if v, ok := snap.translations[locale][key]; ok {
		return v, locale
	}

	if base := BaseLanguage(locale); base != locale {
		if v, ok := snap.translations[base][key]; ok {
			return v, base
		}
	}

	if locale != c.defaultLocale {
		if v, ok := snap.translations[c.defaultLocale][key]; ok {
			return v, c.defaultLocale
		}
	}

	return key, c.defaultLocale
}

// placeholderRe matches {{name}} placeholders, with optional inner spacing.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Interpolate substitutes {{name}} placeholders from vars.
// Unmatched placeholders are left verbatim so missing data stays visible.
func Interpolate(template string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(template, "{{") {
		return template
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}

// NormalizeLocale lowercases a locale code and trims surrounding space.
// Locale keys are always normalized before storage or lookup.
func NormalizeLocale(locale string) string {
	return strings.ToLower(strings.TrimSpace(locale))
}

// BaseLanguage strips a region suffix: "en-us" -> "en", "pt_br" -> "pt".
func BaseLanguage(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		return locale[:i]
	}
	return locale
}

// IsTranslationKey reports whether a stored title or message looks like a
// translation key rather than literal text: dotted, no spaces, no template
// placeholders. Literal strings containing a bare dot (e.g. "v2.0") can
// misclassify; stored payloads carry an explicit discriminant for that reason
// and this heuristic exists only for readers of older records.
func IsTranslationKey(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if strings.Contains(s, "{{") {
		return false
	}
	return strings.Contains(s, ".")
}
