// ABOUTME: Wire payload types for realtime events, webhooks and HTTP responses.
// ABOUTME: Store types never serialize directly; these control the JSON shape.

package fanout

import (
	"time"

	"github.com/shoutbox/shoutbox/internal/store"
)

// ProjectPayload is the tenant as seen by webhooks. The private key and
// email settings never leave the server.
type ProjectPayload struct {
	PublicKey string `json:"public_key"`
	Title     string `json:"title"`
	IsActive  bool   `json:"is_active"`
	PlanType  string `json:"plan_type"`
}

// PersonPayload is a person without their secret.
type PersonPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsOnline  bool   `json:"is_online"`
}

// ChatPayload carries a chat with its denormalized member list. The
// access key is included: every channel this travels on already proved
// access to the chat.
type ChatPayload struct {
	ID        int64     `json:"id"`
	AdminID   *int64    `json:"admin_id"`
	Title     string    `json:"title"`
	IsDirect  bool      `json:"is_direct_chat"`
	AccessKey string    `json:"access_key"`
	MemberIDs []int64   `json:"member_ids"`
	Created   time.Time `json:"created"`
}

// MessagePayload is a message on the wire.
type MessagePayload struct {
	ID             int64     `json:"id"`
	ChatID         int64     `json:"chat_id"`
	SenderID       *int64    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Text           string    `json:"text"`
	Created        time.Time `json:"created"`
}

// TypingPayload announces that a person is typing in a chat.
type TypingPayload struct {
	ID     int64  `json:"id"`
	Person string `json:"person"`
}

// MessageEventData is the envelope data for message events: the chat id
// plus the message, so subscribers on person channels know where it landed.
type MessageEventData struct {
	ID      int64           `json:"id"`
	Message *MessagePayload `json:"message"`
}

func NewProjectPayload(p *store.Project) *ProjectPayload {
	return &ProjectPayload{
		PublicKey: p.PublicKey,
		Title:     p.Title,
		IsActive:  p.IsActive,
		PlanType:  p.PlanType,
	}
}

func NewPersonPayload(p *store.Person) *PersonPayload {
	return &PersonPayload{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		IsOnline:  p.IsOnline,
	}
}

func NewChatPayload(c *store.Chat) *ChatPayload {
	return &ChatPayload{
		ID:        c.ID,
		AdminID:   c.AdminID,
		Title:     c.Title,
		IsDirect:  c.IsDirect,
		AccessKey: c.AccessKey,
		MemberIDs: c.MemberIDs,
		Created:   c.CreatedAt,
	}
}

func NewMessagePayload(m *store.Message) *MessagePayload {
	return &MessagePayload{
		ID:             m.ID,
		ChatID:         m.ChatID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Text:           m.Text,
		Created:        m.CreatedAt,
	}
}
