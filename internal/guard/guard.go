// ABOUTME: Authorization guard deciding what an authenticated actor may do.
// ABOUTME: Collapses cross-tenant and non-member access to NotFound.

package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/store"
)

// Decision is the outcome of an authorization check. NotFound is used
// wherever revealing existence would leak information: a chat in another
// tenant and a chat the actor is not a member of answer identically.
type Decision int

const (
	Allow Decision = iota
	NotFound
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// MembershipStore is the slice of the store the guard needs.
type MembershipStore interface {
	GetChatMember(ctx context.Context, chatID, personID int64) (*store.ChatMember, error)
}

// Guard evaluates authorization for chat and message operations. It
// assumes authentication already happened; a nil identity always denies.
type Guard struct {
	store  MembershipStore
	logger *slog.Logger
}

func New(st MembershipStore, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: st, logger: logger.With("component", "guard")}
}

// sameTenant checks that the chat belongs to the identity's project.
// Store lookups are already tenant-scoped; this is the backstop for
// handlers that load a chat through another path.
func sameTenant(id *auth.Identity, chat *store.Chat) bool {
	return id != nil && id.Project != nil && chat.ProjectID == id.Project.PublicKey
}

// trusted reports whether the identity carries project-wide authority:
// collaborators with an admin token and private-key holders, whatever
// person the key resolved to for attribution.
func trusted(id *auth.Identity) bool {
	return id.Elevated || id.Actor.Kind == auth.ActorOwner || id.Actor.Kind == auth.ActorNone
}

// ViewChat decides whether the actor may read a chat and its messages.
// People must be members; a chat actor may only see itself.
func (g *Guard) ViewChat(ctx context.Context, id *auth.Identity, chat *store.Chat) (Decision, error) {
	if id == nil || !sameTenant(id, chat) {
		return NotFound, nil
	}
	if trusted(id) {
		return Allow, nil
	}
	switch id.Actor.Kind {
	case auth.ActorChat:
		if id.Actor.Chat != nil && id.Actor.Chat.ID == chat.ID {
			return Allow, nil
		}
		return NotFound, nil
	case auth.ActorPerson:
		return g.requireMember(ctx, id, chat)
	}
	return NotFound, nil
}

// PostMessage decides whether the actor may send into a chat. Same rules
// as viewing: members, the chat itself, or project-level access.
func (g *Guard) PostMessage(ctx context.Context, id *auth.Identity, chat *store.Chat) (Decision, error) {
	return g.ViewChat(ctx, id, chat)
}

// ModifyChat decides whether the actor may edit or delete a chat or
// manage its members. Requires the chat admin, the chat itself, or
// project-level access; a plain member gets Forbidden, a non-member
// NotFound.
func (g *Guard) ModifyChat(ctx context.Context, id *auth.Identity, chat *store.Chat) (Decision, error) {
	if id == nil || !sameTenant(id, chat) {
		return NotFound, nil
	}
	if trusted(id) {
		return Allow, nil
	}
	switch id.Actor.Kind {
	case auth.ActorChat:
		if id.Actor.Chat != nil && id.Actor.Chat.ID == chat.ID {
			return Allow, nil
		}
		return NotFound, nil
	case auth.ActorPerson:
		dec, err := g.requireMember(ctx, id, chat)
		if err != nil || dec != Allow {
			return dec, err
		}
		if chat.AdminID != nil && *chat.AdminID == id.PersonID() {
			return Allow, nil
		}
		return Forbidden, nil
	}
	return NotFound, nil
}

// ModifyMessage decides whether the actor may edit or delete a message.
// The sender may, the chat admin may, and so may project-level access.
func (g *Guard) ModifyMessage(ctx context.Context, id *auth.Identity, chat *store.Chat, msg *store.Message) (Decision, error) {
	if id == nil || !sameTenant(id, chat) || msg.ChatID != chat.ID {
		return NotFound, nil
	}
	if trusted(id) {
		return Allow, nil
	}
	switch id.Actor.Kind {
	case auth.ActorChat:
		if id.Actor.Chat == nil || id.Actor.Chat.ID != chat.ID {
			return NotFound, nil
		}
		// A chat actor owns only the messages it posted itself, which
		// carry no sender id.
		if msg.SenderID == nil {
			return Allow, nil
		}
		return Forbidden, nil
	case auth.ActorPerson:
		dec, err := g.requireMember(ctx, id, chat)
		if err != nil || dec != Allow {
			return dec, err
		}
		pid := id.PersonID()
		if msg.SenderID != nil && *msg.SenderID == pid {
			return Allow, nil
		}
		if chat.AdminID != nil && *chat.AdminID == pid {
			return Allow, nil
		}
		return Forbidden, nil
	}
	return NotFound, nil
}

// ManageProject decides whether the actor may touch project-level
// configuration such as webhooks. Only collaborators and private-key
// access qualify; no person-level scheme reaches this.
func (g *Guard) ManageProject(id *auth.Identity) Decision {
	if id == nil || id.Project == nil {
		return NotFound
	}
	if trusted(id) {
		return Allow
	}
	return Forbidden
}

func (g *Guard) requireMember(ctx context.Context, id *auth.Identity, chat *store.Chat) (Decision, error) {
	_, err := g.store.GetChatMember(ctx, chat.ID, id.PersonID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound, nil
		}
		return NotFound, err
	}
	return Allow, nil
}
