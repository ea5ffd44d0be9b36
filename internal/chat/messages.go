// ABOUTME: Message operations: list, send, edit, delete.
// ABOUTME: Sending bumps activity stamps; deleting dispatches before removal.

package chat

import (
	"context"
	"strings"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

// ListMessages returns a chat's messages, oldest first. limit <= 0 means
// no limit.
func (s *Service) ListMessages(ctx context.Context, id *auth.Identity, chatID int64, limit int) ([]*store.Message, error) {
	chat, err := s.GetChat(ctx, id, chatID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chat.ID, limit)
}

// SendMessage posts a message into a chat. Empty messages are rejected
// before anything is persisted or dispatched. The sender's last-read
// pointer and every member's activity stamp move, then the event fans
// out: chat refresh, new message, webhook, conditional email.
func (s *Service) SendMessage(ctx context.Context, id *auth.Identity, chatID int64, text string) (*store.Message, *fanout.Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyMessage
	}

	chat, err := s.loadChat(ctx, id, chatID)
	if err != nil {
		return nil, nil, err
	}
	dec, err := s.guard.PostMessage(ctx, id, chat)
	if err != nil {
		return nil, nil, err
	}
	if err := decisionErr(dec); err != nil {
		return nil, nil, err
	}

	msg := &store.Message{
		ChatID:         chat.ID,
		SenderUsername: actorUsername(id, chat),
		Text:           text,
		CreatedAt:      s.now().UTC(),
	}
	if pid := id.PersonID(); pid != 0 {
		msg.SenderID = &pid
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, nil, err
	}

	if err := s.bumpActivity(ctx, chat, msg); err != nil {
		s.logger.Warn("updating activity stamps failed", "chat", chat.ID, "error", err)
	}

	people, err := s.members(ctx, chat)
	if err != nil {
		return nil, nil, err
	}
	s.dispatcher.ChatActivity(ctx, chat, chat.MemberIDs)
	report := s.dispatcher.MessageEvent(ctx, id.Project, chat, fanout.ActionNewMessage, msg, people)
	return msg, report, nil
}

// bumpActivity moves every member's activity stamp and the sender's
// last-read pointer to the new message.
func (s *Service) bumpActivity(ctx context.Context, chat *store.Chat, msg *store.Message) error {
	members, err := s.store.ListChatMembers(ctx, chat.ID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for _, m := range members {
		m.ChatUpdated = now
		if msg.SenderID != nil && m.PersonID == *msg.SenderID {
			msgID := msg.ID
			m.LastReadID = &msgID
		}
		if err := s.store.UpdateChatMember(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// EditMessage replaces a message's text. Only the sender, the chat admin
// or project-level access may edit.
func (s *Service) EditMessage(ctx context.Context, id *auth.Identity, chatID, messageID int64, text string) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	chat, msg, err := s.loadMessage(ctx, id, chatID, messageID)
	if err != nil {
		return nil, err
	}

	msg.Text = text
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return nil, err
	}

	people, err := s.members(ctx, chat)
	if err != nil {
		return nil, err
	}
	s.dispatcher.MessageEvent(ctx, id.Project, chat, fanout.ActionEditMessage, msg, people)
	return msg, nil
}

// DeleteMessage removes a message, dispatching the full payload first so
// subscribers and webhooks see what was deleted.
func (s *Service) DeleteMessage(ctx context.Context, id *auth.Identity, chatID, messageID int64) (*store.Message, error) {
	chat, msg, err := s.loadMessage(ctx, id, chatID, messageID)
	if err != nil {
		return nil, err
	}

	people, err := s.members(ctx, chat)
	if err != nil {
		return nil, err
	}
	s.dispatcher.MessageEvent(ctx, id.Project, chat, fanout.ActionDeleteMessage, msg, people)

	if err := s.store.DeleteMessage(ctx, chat.ID, msg.ID); err != nil {
		return nil, err
	}
	return msg, nil
}

// loadMessage loads a chat and one of its messages, enforcing the
// modify-message rules.
func (s *Service) loadMessage(ctx context.Context, id *auth.Identity, chatID, messageID int64) (*store.Chat, *store.Message, error) {
	chat, err := s.loadChat(ctx, id, chatID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.store.GetMessage(ctx, chat.ID, messageID)
	if err != nil {
		return nil, nil, err
	}
	dec, err := s.guard.ModifyMessage(ctx, id, chat, msg)
	if err != nil {
		return nil, nil, err
	}
	if err := decisionErr(dec); err != nil {
		return nil, nil, err
	}
	return chat, msg, nil
}
