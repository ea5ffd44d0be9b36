// ABOUTME: Store interface and data types for shoutbox persistence
// ABOUTME: Defines Project, Person, Chat, Message structs and tenant-scoped lookups

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// visible to the requesting tenant. Cross-tenant lookups collapse to this
// error so that callers cannot confirm the existence of foreign resources.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated
var ErrDuplicate = errors.New("already exists")

// Plan type constants. Plans in the throttled set never send message emails.
const (
	PlanBasic        = "basic"
	PlanLight        = "light"
	PlanProduction   = "production"
	PlanProfessional = "professional"
)

// Collaborator role constants
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Project is the tenant root. PublicKey is the low-trust identifier shipped
// to browsers; PrivateKey is the high-trust server-side identifier. Both are
// unguessable UUIDs assigned at creation and never rotated implicitly.
type Project struct {
	PublicKey  string
	PrivateKey string
	OwnerEmail string
	Title      string

	IsActive           bool
	PlanType           string
	MonthlyUsers       int
	MessageHistoryDays int

	EmailsEnabled    bool
	EmailCompanyName string
	EmailSender      string
	EmailLink        string
	EmailLastSent    time.Time

	// LastInactiveNotice stamps the most recent "project deactivated" email,
	// gating the 24h notification cooldown. Nil means never sent.
	LastInactiveNotice *time.Time

	CreatedAt time.Time
}

// Collaborator links an account email to a project with a role.
// The project owner is created as an admin collaborator.
type Collaborator struct {
	Email     string
	ProjectID string
	Role      string
	CreatedAt time.Time
}

// Person is a tenant-scoped end-user identity. Username is unique within
// the project. Secret holds the bcrypt hash, never the plaintext.
type Person struct {
	ID        int64
	ProjectID string
	Username  string
	Secret    string
	Email     string
	FirstName string
	LastName  string
	IsOnline  bool
	CreatedAt time.Time
}

// Chat is a conversation scoped to one project. AccessKey is an independent
// credential not tied to any person, assigned once at creation. MemberIDs is
// a denormalized sorted list of member person ids used for fast
// get-or-create-by-members and dedup queries.
type Chat struct {
	ID        int64
	ProjectID string
	AdminID   *int64
	Title     string
	IsDirect  bool
	AccessKey string
	MemberIDs []int64
	CreatedAt time.Time
}

// ChatMember is the membership join row with the last-read pointer and the
// activity stamp used for conversation-list ordering.
type ChatMember struct {
	ChatID      int64
	PersonID    int64
	LastReadID  *int64
	ChatUpdated time.Time
}

// Message belongs to exactly one chat. SenderID is nil when the message was
// posted via chat-access-key auth; SenderUsername masks the display name in
// that case.
type Message struct {
	ID             int64
	ChatID         int64
	SenderID       *int64
	SenderUsername string
	Text           string
	CreatedAt      time.Time
}

// Webhook is a per-tenant outbound hook registered for one event trigger.
// Secret is assigned once at creation ("whk-" prefix).
type Webhook struct {
	ID           int64
	ProjectID    string
	EventTrigger string
	URL          string
	Secret       string
	CreatedAt    time.Time
}

// Session is an opaque bearer token mapped 1:1 to a person ("st-" prefix).
// Expiry is advisory: expired sessions are refreshed on read, not rejected.
type Session struct {
	PersonID int64
	Token    string
	Expiry   time.Time
}

// ProjectStore holds tenant records and their credentials
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, publicKey string) (*Project, error)
	GetProjectByPublicKey(ctx context.Context, key string) (*Project, error)
	GetProjectByPrivateKey(ctx context.Context, key string) (*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, publicKey string) error

	CreateCollaborator(ctx context.Context, c *Collaborator) error
	GetCollaborator(ctx context.Context, email, projectID string) (*Collaborator, error)
}

// PersonStore holds tenant-scoped people
type PersonStore interface {
	CreatePerson(ctx context.Context, p *Person) error
	GetPerson(ctx context.Context, projectID, username string) (*Person, error)
	GetPersonByID(ctx context.Context, projectID string, id int64) (*Person, error)
	// FirstPerson returns the project's first person by creation order
	// (created ASC, id ASC), or ErrNotFound when the project has none.
	FirstPerson(ctx context.Context, projectID string) (*Person, error)
	// LookupPerson retrieves a person by bare id with no tenant scoping.
	// Used to resolve session tokens back to their owner; everything
	// caller-facing goes through GetPersonByID.
	LookupPerson(ctx context.Context, id int64) (*Person, error)
	ListPeople(ctx context.Context, projectID string) ([]*Person, error)
	UpdatePerson(ctx context.Context, p *Person) error
	DeletePerson(ctx context.Context, projectID string, id int64) error
}

// ChatStore holds chats, memberships and messages
type ChatStore interface {
	CreateChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, projectID string, chatID int64) (*Chat, error)
	GetChatByAccessKey(ctx context.Context, projectID string, chatID int64, accessKey string) (*Chat, error)
	FindChatByMembers(ctx context.Context, projectID string, memberIDs []int64, title string) (*Chat, error)
	ListChats(ctx context.Context, projectID string) ([]*Chat, error)
	UpdateChat(ctx context.Context, c *Chat) error
	DeleteChat(ctx context.Context, projectID string, chatID int64) error

	AddChatMember(ctx context.Context, chatID, personID int64) (created bool, err error)
	GetChatMember(ctx context.Context, chatID, personID int64) (*ChatMember, error)
	ListChatMembers(ctx context.Context, chatID int64) ([]*ChatMember, error)
	ListChatsForPerson(ctx context.Context, personID int64, limit int) ([]*Chat, error)
	UpdateChatMember(ctx context.Context, m *ChatMember) error
	RemoveChatMember(ctx context.Context, chatID, personID int64) error

	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, chatID, messageID int64) (*Message, error)
	ListMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error)
	UpdateMessage(ctx context.Context, m *Message) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// PurgeMessages removes messages strictly older than each project's
	// retention window and returns the number removed. A message whose age
	// equals the window exactly is retained.
	PurgeMessages(ctx context.Context, now time.Time) (int64, error)
}

// WebhookStore holds outbound webhook registrations
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w *Webhook) error
	GetWebhook(ctx context.Context, projectID, eventTrigger string) (*Webhook, error)
	ListWebhooks(ctx context.Context, projectID string) ([]*Webhook, error)
	DeleteWebhook(ctx context.Context, projectID string, id int64) error
}

// SessionStore holds reconnect session tokens
type SessionStore interface {
	// GetOrCreateSession returns the person's session, minting a token on
	// first use and extending the expiry when it has already passed.
	GetOrCreateSession(ctx context.Context, personID int64) (*Session, error)
	// GetSessionByToken resolves a token to its session, silently extending
	// the expiry when stale (refresh-on-read).
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
}

// Store combines all persistence interfaces. SQLiteStore implements Store.
type Store interface {
	ProjectStore
	PersonStore
	ChatStore
	WebhookStore
	SessionStore
	Close() error
}
