// ABOUTME: Event dispatcher running the fixed fan-out order:
// ABOUTME: realtime publish, then webhook, then conditional email.

package fanout

import (
	"context"
	"log/slog"

	"github.com/shoutbox/shoutbox/internal/store"
)

// Report records what a dispatch actually did. Handlers return parts of
// it to callers (the email outcome in particular) and log the rest.
type Report struct {
	Channels        []string
	WebhookSent     bool
	EmailOutcome    string
	EmailRecipients []string
}

// Dispatcher fans a domain event out to every delivery tier. The order
// is fixed: realtime first so connected clients see the event with the
// lowest latency, then the webhook, then email for new messages. Every
// tier is best-effort; a failure in one never blocks the next.
type Dispatcher struct {
	publisher Publisher
	webhooks  *WebhookSender
	emailer   *Emailer
	logger    *slog.Logger
}

func NewDispatcher(publisher Publisher, webhooks *WebhookSender, emailer *Emailer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		publisher: publisher,
		webhooks:  webhooks,
		emailer:   emailer,
		logger:    logger.With("component", "dispatcher"),
	}
}

// publish fans an envelope out to each recipient's person channel and to
// the chat channel.
func (d *Dispatcher) publish(ctx context.Context, action Action, data any, chatID int64, recipients []int64) []string {
	env := NewEnvelope(action, data)
	channels := make([]string, 0, len(recipients)+1)
	for _, personID := range recipients {
		ch := PersonChannel(personID)
		d.publisher.Publish(ctx, ch, env)
		channels = append(channels, ch)
	}
	ch := ChatChannel(chatID)
	d.publisher.Publish(ctx, ch, env)
	return append(channels, ch)
}

// ChatEvent dispatches a chat-level event (created, edited, deleted,
// member added or removed) to the given member ids.
func (d *Dispatcher) ChatEvent(ctx context.Context, project *store.Project, action Action, chat *store.Chat, recipients []int64) *Report {
	report := &Report{}
	payload := NewChatPayload(chat)

	report.Channels = d.publish(ctx, action, payload, chat.ID, recipients)
	report.WebhookSent = d.webhooks.Send(ctx, project, action, &WebhookEvent{Chat: payload})

	d.logger.Debug("dispatched chat event", "action", action, "chat", chat.ID, "recipients", len(recipients))
	return report
}

// MessageEvent dispatches a message-level event. Email runs only for new
// messages and only to qualifying members; the outcome lands in the report.
func (d *Dispatcher) MessageEvent(ctx context.Context, project *store.Project, chat *store.Chat, action Action, msg *store.Message, people []*store.Person) *Report {
	report := &Report{}
	data := &MessageEventData{ID: chat.ID, Message: NewMessagePayload(msg)}

	recipients := make([]int64, 0, len(people))
	for _, p := range people {
		recipients = append(recipients, p.ID)
	}

	report.Channels = d.publish(ctx, action, data, chat.ID, recipients)
	report.WebhookSent = d.webhooks.Send(ctx, project, action, &WebhookEvent{Message: data.Message})

	if action == ActionNewMessage && d.emailer != nil {
		report.EmailOutcome, report.EmailRecipients = d.emailer.EmailChatMembers(ctx, project, msg, people)
	}

	d.logger.Debug("dispatched message event",
		"action", action, "chat", chat.ID, "message", msg.ID,
		"email_outcome", report.EmailOutcome)
	return report
}

// ChatActivity publishes a chat refresh to members after something inside
// it changed (a message arrived). Realtime only: this is not a chat
// mutation, so no webhook fires.
func (d *Dispatcher) ChatActivity(ctx context.Context, chat *store.Chat, recipients []int64) {
	d.publish(ctx, ActionEditChat, NewChatPayload(chat), chat.ID, recipients)
}

// PersonEvent dispatches a user-level event. Only the webhook tier
// applies; there is no realtime channel for user lifecycle.
func (d *Dispatcher) PersonEvent(ctx context.Context, project *store.Project, action Action, person *store.Person) *Report {
	report := &Report{
		WebhookSent: d.webhooks.Send(ctx, project, action, &WebhookEvent{Person: NewPersonPayload(person)}),
	}
	d.logger.Debug("dispatched person event", "action", action, "person", person.ID)
	return report
}

// Typing announces a typing indicator on the chat's channels. Ephemeral:
// realtime only, nothing persisted, no webhook, no email.
func (d *Dispatcher) Typing(ctx context.Context, chat *store.Chat, username string, recipients []int64) *TypingPayload {
	payload := &TypingPayload{ID: chat.ID, Person: username}
	d.publish(ctx, ActionIsTyping, payload, chat.ID, recipients)
	return payload
}
