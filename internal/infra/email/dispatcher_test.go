package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticenter/internal/domain/notification"
	"noticenter/internal/infra/template"
)

func testRenderer(t *testing.T) notification.TemplateRenderer {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"),
		[]byte(`<h1>{{.subject}}</h1><p>{{.body}}</p>`), 0o644))

	engine, err := template.NewEngine(dir)
	require.NoError(t, err)
	return engine
}

func TestDispatcher_SendsThroughResend(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{"id": "email-1"})
	}))
	defer srv.Close()

	client := NewResendClient("key-1", "no-reply@example.com", "Example").WithBaseURL(srv.URL)
	d := NewDispatcher(client, nil)

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{
		To:      "ada@example.com",
		Subject: "Hello",
		Body:    "<p>Hi</p>",
	})

	require.True(t, outcome.OK)
	assert.Equal(t, 1, outcome.SuccessCount)
	assert.Equal(t, "Hello", captured["subject"])
	assert.Equal(t, "Example <no-reply@example.com>", captured["from"])
}

func TestDispatcher_RendersNamedTemplate(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{"id": "email-1"})
	}))
	defer srv.Close()

	client := NewResendClient("key-1", "no-reply@example.com", "").WithBaseURL(srv.URL)
	d := NewDispatcher(client, testRenderer(t))

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{
		To:       "ada@example.com",
		Subject:  "Welcome",
		Body:     "You are in.",
		Template: "welcome",
	})

	require.True(t, outcome.OK)
	html, _ := captured["html"].(string)
	assert.Contains(t, html, "<h1>Welcome</h1>")
	assert.Contains(t, html, "You are in.")
}

func TestDispatcher_UnknownTemplateIsFailure(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewResendClient("key-1", "no-reply@example.com", "").WithBaseURL(srv.URL)
	d := NewDispatcher(client, testRenderer(t))

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{
		To:       "ada@example.com",
		Subject:  "s",
		Template: "does_not_exist",
	})

	assert.False(t, outcome.OK)
	assert.False(t, outcome.Skipped, "an unresolvable template is a hard error, not a skip")
	assert.False(t, called, "nothing is sent when rendering fails")
}

func TestDispatcher_MissingRecipientSkipped(t *testing.T) {
	d := NewDispatcher(NewResendClient("key-1", "from@example.com", ""), nil)

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{Subject: "s"})
	assert.True(t, outcome.Skipped)
}

func TestDispatcher_MissingAPIKeyFails(t *testing.T) {
	d := NewDispatcher(NewResendClient("", "from@example.com", ""), nil)

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{To: "a@b.c", Subject: "s"})
	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Error, "misconfigured")
}

func TestDispatcher_APIErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "invalid to address", "statusCode": 422})
	}))
	defer srv.Close()

	client := NewResendClient("key-1", "from@example.com", "").WithBaseURL(srv.URL)
	d := NewDispatcher(client, nil)

	outcome := d.SendEmail(context.Background(), &notification.EmailMessage{To: "bad", Subject: "s"})
	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Error, "invalid to address")
}
