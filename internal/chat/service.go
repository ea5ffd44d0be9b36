// ABOUTME: Chat service: the business operations behind the HTTP surface.
// ABOUTME: Each operation authorizes, mutates, then dispatches fan-out.

package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/guard"
	"github.com/shoutbox/shoutbox/internal/store"
)

// ErrForbidden means the actor may see the target but not do this to it.
var ErrForbidden = errors.New("forbidden")

// ErrEmptyMessage rejects messages with no content before anything is
// persisted or fanned out.
var ErrEmptyMessage = errors.New("message has no content")

// Service implements chat, membership and message operations. Every
// mutation dispatches through the fan-out pipeline; deletes dispatch
// before the row disappears so subscribers receive the full payload.
type Service struct {
	store      store.Store
	guard      *guard.Guard
	dispatcher *fanout.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(st store.Store, g *guard.Guard, d *fanout.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      st,
		guard:      g,
		dispatcher: d,
		logger:     logger.With("component", "chat"),
		now:        time.Now,
	}
}

// decisionErr maps a guard decision onto the service's error surface.
func decisionErr(dec guard.Decision) error {
	switch dec {
	case guard.Allow:
		return nil
	case guard.Forbidden:
		return ErrForbidden
	default:
		return store.ErrNotFound
	}
}

// loadChat fetches a chat inside the identity's project.
func (s *Service) loadChat(ctx context.Context, id *auth.Identity, chatID int64) (*store.Chat, error) {
	return s.store.GetChat(ctx, id.Project.PublicKey, chatID)
}

// members returns the chat's member people, used for fan-out targeting.
func (s *Service) members(ctx context.Context, chat *store.Chat) ([]*store.Person, error) {
	people := make([]*store.Person, 0, len(chat.MemberIDs))
	for _, personID := range chat.MemberIDs {
		p, err := s.store.GetPersonByID(ctx, chat.ProjectID, personID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		people = append(people, p)
	}
	return people, nil
}

// ListChats returns the chats visible to the actor, most recently active
// first. A person sees their memberships, a chat sees itself, and
// project-level access sees everything in the project.
func (s *Service) ListChats(ctx context.Context, id *auth.Identity, limit int) ([]*store.Chat, error) {
	switch id.Actor.Kind {
	case auth.ActorPerson:
		return s.store.ListChatsForPerson(ctx, id.PersonID(), limit)
	case auth.ActorChat:
		chat, err := s.loadChat(ctx, id, id.Actor.Chat.ID)
		if err != nil {
			return nil, err
		}
		return []*store.Chat{chat}, nil
	case auth.ActorOwner, auth.ActorNone:
		return s.store.ListChats(ctx, id.Project.PublicKey)
	}
	return nil, store.ErrNotFound
}

// GetChat returns a single chat the actor may view.
func (s *Service) GetChat(ctx context.Context, id *auth.Identity, chatID int64) (*store.Chat, error) {
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
	return chat, nil
}

// CreateChat creates a chat with the acting person as admin and first
// member. A chat actor cannot create chats; project-level access creates
// an admin-less chat.
func (s *Service) CreateChat(ctx context.Context, id *auth.Identity, title string, isDirect bool) (*store.Chat, error) {
	if id.Actor.Kind == auth.ActorChat {
		return nil, ErrForbidden
	}

	chat := &store.Chat{
		ProjectID: id.Project.PublicKey,
		Title:     title,
		IsDirect:  isDirect,
		AccessKey: "ca-" + uuid.New().String(),
		CreatedAt: s.now().UTC(),
	}
	if pid := id.PersonID(); pid != 0 {
		chat.AdminID = &pid
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	if chat.AdminID != nil {
		if _, err := s.store.AddChatMember(ctx, chat.ID, *chat.AdminID); err != nil {
			return nil, err
		}
		chat.MemberIDs = []int64{*chat.AdminID}
	}

	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionNewChat, chat, chat.MemberIDs)
	s.logger.Info("chat created", "project", chat.ProjectID, "chat", chat.ID)
	return chat, nil
}

// GetOrCreateChatByMembers finds the chat with exactly this member set
// (plus the actor) and title, creating it if absent. Member order does
// not matter. Returns the chat and whether it was created.
func (s *Service) GetOrCreateChatByMembers(ctx context.Context, id *auth.Identity, usernames []string, title string, isDirect bool) (*store.Chat, bool, error) {
	if id.Actor.Kind == auth.ActorChat {
		return nil, false, ErrForbidden
	}

	memberIDs := make([]int64, 0, len(usernames)+1)
	if pid := id.PersonID(); pid != 0 {
		memberIDs = append(memberIDs, pid)
	}
	for _, username := range usernames {
		person, err := s.store.GetPerson(ctx, id.Project.PublicKey, username)
		if err != nil {
			return nil, false, err
		}
		memberIDs = append(memberIDs, person.ID)
	}

	existing, err := s.store.FindChatByMembers(ctx, id.Project.PublicKey, memberIDs, title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	chat, err := s.CreateChat(ctx, id, title, isDirect)
	if err != nil {
		return nil, false, err
	}
	for _, personID := range memberIDs {
		if _, err := s.store.AddChatMember(ctx, chat.ID, personID); err != nil {
			return nil, false, err
		}
	}
	chat, err = s.loadChat(ctx, id, chat.ID)
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// EditChat updates the chat's title and direct flag.
func (s *Service) EditChat(ctx context.Context, id *auth.Identity, chatID int64, title *string, isDirect *bool) (*store.Chat, error) {
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

	if title != nil {
		chat.Title = *title
	}
	if isDirect != nil {
		chat.IsDirect = *isDirect
	}
	if err := s.store.UpdateChat(ctx, chat); err != nil {
		return nil, err
	}

	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionEditChat, chat, chat.MemberIDs)
	return chat, nil
}

// DeleteChat removes a chat. The delete event is dispatched before the
// row disappears so every tier sees the full payload.
func (s *Service) DeleteChat(ctx context.Context, id *auth.Identity, chatID int64) (*store.Chat, error) {
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

	s.dispatcher.ChatEvent(ctx, id.Project, fanout.ActionDeleteChat, chat, chat.MemberIDs)
	if err := s.store.DeleteChat(ctx, chat.ProjectID, chat.ID); err != nil {
		return nil, err
	}
	s.logger.Info("chat deleted", "project", chat.ProjectID, "chat", chat.ID)
	return chat, nil
}

// Typing announces the actor typing in a chat. Nothing is persisted.
func (s *Service) Typing(ctx context.Context, id *auth.Identity, chatID int64) (*fanout.TypingPayload, error) {
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
	return s.dispatcher.Typing(ctx, chat, actorUsername(id, chat), chat.MemberIDs), nil
}

// actorUsername is the display name fan-out payloads carry for the actor.
func actorUsername(id *auth.Identity, chat *store.Chat) string {
	switch id.Actor.Kind {
	case auth.ActorPerson:
		return id.Actor.Person.Username
	case auth.ActorChat:
		return chat.Title
	case auth.ActorOwner:
		return id.Actor.Email
	}
	return ""
}

// PurgeOldMessages deletes messages older than each project's retention
// window. Cron entry point; returns the number of rows removed.
func (s *Service) PurgeOldMessages(ctx context.Context) (int64, error) {
	purged, err := s.store.PurgeMessages(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("purged expired messages", "count", purged)
	}
	return purged, nil
}
