// ABOUTME: Outbound webhook delivery with a short timeout, at most once.
// ABOUTME: Looks up the tenant's hook for a trigger and POSTs the event.

package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shoutbox/shoutbox/internal/store"
)

// DefaultWebhookTimeout bounds each delivery attempt. Webhooks are
// advisory; a slow receiver must not slow the request that triggered it.
const DefaultWebhookTimeout = 500 * time.Millisecond

// WebhookInfo is the registered hook echoed inside its own payload so the
// receiver can verify the secret.
type WebhookInfo struct {
	EventTrigger string `json:"event_trigger"`
	URL          string `json:"url"`
	Secret       string `json:"secret"`
}

// WebhookEvent is the POST body. Exactly one of Chat, Person or Message
// is set; the others are null, matching what receivers already parse.
type WebhookEvent struct {
	Project *ProjectPayload `json:"project"`
	Webhook *WebhookInfo    `json:"webhook"`
	Chat    *ChatPayload    `json:"chat"`
	Person  *PersonPayload  `json:"person"`
	Message *MessagePayload `json:"message"`
}

// WebhookSender delivers events to tenant-registered webhooks. Delivery
// is at most once: no retries, no queueing, failures only logged.
type WebhookSender struct {
	store  store.WebhookStore
	client *http.Client
	logger *slog.Logger
}

func NewWebhookSender(st store.WebhookStore, timeout time.Duration, logger *slog.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		store:  st,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "webhooks"),
	}
}

// Send looks up the project's hook for the action's trigger and POSTs the
// event. No registered hook, or an action with no trigger, is a silent
// no-op. Returns whether a delivery was attempted.
func (s *WebhookSender) Send(ctx context.Context, project *store.Project, action Action, event *WebhookEvent) bool {
	trigger := TriggerFor(action)
	if trigger == "" {
		return false
	}
	hook, err := s.store.GetWebhook(ctx, project.PublicKey, trigger)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("webhook lookup failed", "project", project.PublicKey, "trigger", trigger, "error", err)
		}
		return false
	}

	event.Project = NewProjectPayload(project)
	event.Webhook = &WebhookInfo{
		EventTrigger: hook.EventTrigger,
		URL:          hook.URL,
		Secret:       hook.Secret,
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("webhook payload encode failed", "trigger", trigger, "error", err)
		return false
	}

	// No request means no attempt was made, unlike a delivery error below.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed", "url", hook.URL, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed", "url", hook.URL, "trigger", trigger, "error", err)
		return true
	}
	defer resp.Body.Close()

	s.logger.Debug("webhook delivered", "url", hook.URL, "trigger", trigger, "status", resp.StatusCode)
	return true
}
