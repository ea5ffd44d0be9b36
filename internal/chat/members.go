// ABOUTME: Chat membership operations: add, remove, leave.
// ABOUTME: Membership changes notify the chat and the affected person.

package chat

import (
	"context"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

// ListPeople returns the chat's members as people, for actors who may
// view the chat.
func (s *Service) ListPeople(ctx context.Context, id *auth.Identity, chatID int64) ([]*store.Person, error) {
	chat, err := s.GetChat(ctx, id, chatID)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, chat)
}

// AddPerson adds a project person to a chat. The chat's members are told
// about the new person; the new person is told about the chat, which is
// new from their side.
func (s *Service) AddPerson(ctx context.Context, id *auth.Identity, chatID int64, username string) (*store.Chat, error) {
	chat, err := s.loadChat(ctx, id, chatID)
	if err != nil {
		return nil, err
	}
	dec, err := s.guard.ModifyChat(ctx, id, chat)
	if err != nil {
		return nil, err
	}
	if err := decisionErr(dec); err != nil {
		return nil, err
	}

	person, err := s.store.GetPerson(ctx, chat.ProjectID, username)
	if err != nil {
		return nil, err
	}
	created, err := s.store.AddChatMember(ctx, chat.ID, person.ID)
	if err != nil {
		return nil, err
	}
	chat, err = s.loadChat(ctx, id, chat.ID)
	if err != nil {
		return nil, err
	}
	if !created {
		return chat, nil
	}

	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionAddPerson, chat, chat.MemberIDs)
	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionNewChat, chat, []int64{person.ID})
	return chat, nil
}

// RemovePerson removes a member from a chat. The remaining members see
// the removal; the removed person sees the chat disappear.
func (s *Service) RemovePerson(ctx context.Context, id *auth.Identity, chatID int64, username string) (*store.Chat, error) {
	chat, err := s.loadChat(ctx, id, chatID)
	if err != nil {
		return nil, err
	}
	dec, err := s.guard.ModifyChat(ctx, id, chat)
	if err != nil {
		return nil, err
	}
	if err := decisionErr(dec); err != nil {
		return nil, err
	}

	person, err := s.store.GetPerson(ctx, chat.ProjectID, username)
	if err != nil {
		return nil, err
	}
	return s.removeMember(ctx, id, chat, person.ID)
}

// LeaveChat removes the acting person from a chat. Only people can
// leave; a chat actor has no membership to give up.
func (s *Service) LeaveChat(ctx context.Context, id *auth.Identity, chatID int64) (*store.Chat, error) {
	if id.Actor.Kind != auth.ActorPerson {
		return nil, ErrForbidden
	}
	chat, err := s.loadChat(ctx, id, chatID)
	if err != nil {
		return nil, err
	}
	dec, err := s.guard.ViewChat(ctx, id, chat)
	if err != nil {
		return nil, err
	}
	if err := decisionErr(dec); err != nil {
		return nil, err
	}
	return s.removeMember(ctx, id, chat, id.PersonID())
}

func (s *Service) removeMember(ctx context.Context, id *auth.Identity, chat *store.Chat, personID int64) (*store.Chat, error) {
	if err := s.store.RemoveChatMember(ctx, chat.ID, personID); err != nil {
		return nil, err
	}
	chat, err := s.loadChat(ctx, id, chat.ID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionRemovePerson, chat, chat.MemberIDs)
	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionDeleteChat, chat, []int64{personID})
	return chat, nil
}
