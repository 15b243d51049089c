package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestEngine_RenderComposesLayout(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"header.html":  `<div class="frame">`,
		"footer.html":  `</div>`,
		"welcome.html": `{{template "header.html" .}}<p>Hello {{.name}}</p>{{template "footer.html" .}}`,
	})

	e, err := NewEngine(dir)
	require.NoError(t, err)

	html, text, err := e.Render("welcome", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	assert.Contains(t, html, `<div class="frame">`)
	assert.Contains(t, html, "<p>Hello Ada</p>")
	assert.Contains(t, html, "</div>")
	assert.Equal(t, "Hello Ada", text)
}

func TestEngine_UnknownTemplateIsHardError(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"welcome.html": `<p>hi</p>`,
	})

	e, err := NewEngine(dir)
	require.NoError(t, err)

	_, _, err = e.Render("order_shipped", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_shipped")
}

func TestEngine_PlainTextConcatenatesIntroAndOutro(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"note.html": `<p>{{.body}}</p>`,
	})

	e, err := NewEngine(dir)
	require.NoError(t, err)

	_, text, err := e.Render("note", map[string]any{
		"body":  "Main content",
		"intro": "Hi Ada,",
		"outro": []string{"Thanks,", "The team"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi Ada,\n\nMain content\n\nThanks,\n\nThe team", text)
}

func TestEngine_EscapesUserContent(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"note.html": `<p>{{.body}}</p>`,
	})

	e, err := NewEngine(dir)
	require.NoError(t, err)

	html, _, err := e.Render("note", map[string]any{"body": `<script>alert(1)</script>`})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
}
