package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"noticenter/internal/domain/notification"
)

const defaultBaseURL = "https://fcm.googleapis.com"

var _ notification.PushDispatcher = (*FCMDispatcher)(nil)

// FCMDispatcher delivers push notifications through Firebase Cloud
// Messaging. A single multicast call covers all device tokens; results
// come back per token, so a send can be partially successful.
type FCMDispatcher struct {
	serverKey  string
	baseURL    string
	httpClient *http.Client
}

// NewFCMDispatcher creates a push dispatcher backed by FCM.
func NewFCMDispatcher(serverKey string) *FCMDispatcher {
	return &FCMDispatcher{
		serverKey:  serverKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the dispatcher at a different API host. Used by tests.
func (d *FCMDispatcher) WithBaseURL(baseURL string) *FCMDispatcher {
	d.baseURL = baseURL
	return d
}

type fcmRequest struct {
	RegistrationIDs []string        `json:"registration_ids"`
	Notification    fcmNotification `json:"notification"`
	Data            map[string]any  `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// SendPush delivers one push payload to every token on the message.
// No tokens means nothing to do: the outcome is a skip, not a failure.
func (d *FCMDispatcher) SendPush(ctx context.Context, msg *notification.PushMessage) *notification.ChannelOutcome {
	if msg == nil || len(msg.Tokens) == 0 {
		return notification.SkippedOutcome("no device tokens registered")
	}
	if d.serverKey == "" {
		return &notification.ChannelOutcome{
			OK:           false,
			FailureCount: len(msg.Tokens),
			Error:        "push provider misconfigured: fcm server key is not set",
		}
	}

	reqBody := fcmRequest{
		RegistrationIDs: msg.Tokens,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return notification.FailedOutcome(fmt.Errorf("marshaling fcm payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/fcm/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return notification.FailedOutcome(fmt.Errorf("creating fcm request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+d.serverKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return notification.FailedOutcome(fmt.Errorf("executing fcm request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return notification.FailedOutcome(fmt.Errorf("reading fcm response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return notification.FailedOutcome(fmt.Errorf("fcm API error: status %d", resp.StatusCode))
	}

	var fcmResp fcmResponse
	if err := json.Unmarshal(respBody, &fcmResp); err != nil {
		return notification.FailedOutcome(fmt.Errorf("parsing fcm response: %w", err))
	}

	outcome := &notification.ChannelOutcome{
		OK:           fcmResp.Failure == 0,
		SuccessCount: fcmResp.Success,
		FailureCount: fcmResp.Failure,
	}
	if fcmResp.Failure > 0 {
		outcome.Error = firstFCMError(&fcmResp)
	}

	return outcome
}

func firstFCMError(resp *fcmResponse) string {
	for _, r := range resp.Results {
		if r.Error != "" {
			return fmt.Sprintf("fcm: %s (%d of %d tokens failed)", r.Error, resp.Failure, resp.Success+resp.Failure)
		}
	}
	return fmt.Sprintf("fcm: %d tokens failed", resp.Failure)
}
