package template

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"noticenter/internal/domain/notification"
)

var _ notification.TemplateRenderer = (*Engine)(nil)

// Engine renders email templates using Go's html/template package.
// Every body template composes the shared layout partials (header, footer),
// so all outgoing email carries the same frame.
type Engine struct {
	templates *template.Template
}

// NewEngine creates a template engine by loading all templates from the
// given directory. Layout partials and body templates live side by side.
func NewEngine(templatesDir string) (*Engine, error) {
	tmpl, err := template.ParseGlob(templatesDir + "/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates from %s: %w", templatesDir, err)
	}

	return &Engine{templates: tmpl}, nil
}

// Render produces an HTML body and a plain-text fallback for the named
// template. An unknown template name is a hard error, never a silent skip.
func (e *Engine) Render(templateName string, data map[string]any) (htmlBody, text string, err error) {
	name := templateName + ".html"
	if e.templates.Lookup(name) == nil {
		return "", "", fmt.Errorf("no template registered with name: %s", templateName)
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("executing template %s: %w", templateName, err)
	}
	htmlBody = buf.String()

	text = plainText(data, htmlBody)

	return htmlBody, text, nil
}

// plainText builds the text alternative by concatenating the intro
// paragraphs, the stripped HTML body, and the outro paragraphs.
func plainText(data map[string]any, htmlBody string) string {
	var paragraphs []string
	paragraphs = append(paragraphs, asLines(data["intro"])...)
	if body := stripHTML(htmlBody); body != "" {
		paragraphs = append(paragraphs, body)
	}
	paragraphs = append(paragraphs, asLines(data["outro"])...)
	return strings.Join(paragraphs, "\n\n")
}

func asLines(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				lines = append(lines, s)
			}
		}
		return lines
	}
	return nil
}

// stripHTML removes HTML tags and collapses whitespace to produce a
// plain-text version.
func stripHTML(s string) string {
	re := regexp.MustCompile(`<[^>]*>`)
	text := re.ReplaceAllString(s, "")

	// Decode common HTML entities
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	wsRe := regexp.MustCompile(`\s+`)
	text = wsRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
