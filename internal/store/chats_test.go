// ABOUTME: Tests for chat, membership, message and webhook persistence
// ABOUTME: Covers member-list dedup, order-independent lookup and the purge boundary

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestChat inserts a chat owned by admin with the given members.
func newTestChat(t *testing.T, s *SQLiteStore, projectID string, admin *Person, members ...*Person) *Chat {
	t.Helper()
	ctx := context.Background()

	chat := &Chat{
		ProjectID: projectID,
		AdminID:   &admin.ID,
		AccessKey: "ca-" + uuid.New().String(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateChat(ctx, chat))

	for _, m := range append([]*Person{admin}, members...) {
		_, err := s.AddChatMember(ctx, chat.ID, m.ID)
		require.NoError(t, err)
	}

	got, err := s.GetChat(ctx, projectID, chat.ID)
	require.NoError(t, err)
	return got
}

func TestStore_Chat_TenantIsolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := newTestProject(t, store, "Tenant A")
	b := newTestProject(t, store, "Tenant B")
	admin := newTestPerson(t, store, a.PublicKey, "adam")
	chat := newTestChat(t, store, a.PublicKey, admin)

	// A valid chat id under the wrong tenant collapses to not found
	_, err := store.GetChat(ctx, b.PublicKey, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ChatByAccessKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	admin := newTestPerson(t, store, p.PublicKey, "adam")
	chat := newTestChat(t, store, p.PublicKey, admin)

	got, err := store.GetChatByAccessKey(ctx, p.PublicKey, chat.ID, chat.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, got.ID)

	// Wrong key looks exactly like a missing chat
	_, err = store.GetChatByAccessKey(ctx, p.PublicKey, chat.ID, "ca-wrong")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AddChatMember_Dedup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	admin := newTestPerson(t, store, p.PublicKey, "adam")
	chat := newTestChat(t, store, p.PublicKey, admin)

	created, err := store.AddChatMember(ctx, chat.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, created, "re-adding an existing member is a no-op")

	got, err := store.GetChat(ctx, p.PublicKey, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{admin.ID}, got.MemberIDs)
}

func TestStore_MemberIDs_SortedOnAddAndRemove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	adam := newTestPerson(t, store, p.PublicKey, "adam")
	bea := newTestPerson(t, store, p.PublicKey, "bea")
	cal := newTestPerson(t, store, p.PublicKey, "cal")

	chat := newTestChat(t, store, p.PublicKey, cal, adam, bea)
	assert.Equal(t, []int64{adam.ID, bea.ID, cal.ID}, chat.MemberIDs)

	require.NoError(t, store.RemoveChatMember(ctx, chat.ID, bea.ID))

	got, err := store.GetChat(ctx, p.PublicKey, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{adam.ID, cal.ID}, got.MemberIDs)

	_, err = store.GetChatMember(ctx, chat.ID, bea.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindChatByMembers_OrderIndependent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	adam := newTestPerson(t, store, p.PublicKey, "adam")
	bea := newTestPerson(t, store, p.PublicKey, "bea")
	chat := newTestChat(t, store, p.PublicKey, adam, bea)

	found, err := store.FindChatByMembers(ctx, p.PublicKey, []int64{adam.ID, bea.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)

	// Reversed member order matches the same chat
	found, err = store.FindChatByMembers(ctx, p.PublicKey, []int64{bea.ID, adam.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)

	_, err = store.FindChatByMembers(ctx, p.PublicKey, []int64{adam.ID}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListChatsForPerson_ActivityOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	adam := newTestPerson(t, store, p.PublicKey, "adam")
	older := newTestChat(t, store, p.PublicKey, adam)
	newer := newTestChat(t, store, p.PublicKey, adam)

	// Touch the older chat so it becomes the most recently active
	member, err := store.GetChatMember(ctx, older.ID, adam.ID)
	require.NoError(t, err)
	member.ChatUpdated = time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateChatMember(ctx, member))

	chats, err := store.ListChatsForPerson(ctx, adam.ID, 10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, newer.ID, chats[1].ID)

	// Zero means no limit, not an empty page.
	chats, err = store.ListChatsForPerson(ctx, adam.ID, 0)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = store.ListChatsForPerson(ctx, adam.ID, 1)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, older.ID, chats[0].ID)
}

func TestStore_Messages_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	adam := newTestPerson(t, store, p.PublicKey, "adam")
	chat := newTestChat(t, store, p.PublicKey, adam)

	for _, text := range []string{"one", "two", "three"} {
		msg := &Message{ChatID: chat.ID, SenderID: &adam.ID, SenderUsername: adam.Username, Text: text, CreatedAt: time.Now()}
		require.NoError(t, store.CreateMessage(ctx, msg))
	}

	messages, err := store.ListMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	// Latest two, oldest first
	assert.Equal(t, "two", messages[0].Text)
	assert.Equal(t, "three", messages[1].Text)

	// Message ids are scoped to their chat
	other := newTestChat(t, store, p.PublicKey, adam)
	_, err = store.GetMessage(ctx, other.ID, messages[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PurgeMessages_Boundary(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	adam := newTestPerson(t, store, p.PublicKey, "adam")
	chat := newTestChat(t, store, p.PublicKey, adam)

	now := time.Now().UTC().Truncate(time.Second)
	retention := time.Duration(p.MessageHistoryDays) * 24 * time.Hour

	expired := &Message{ChatID: chat.ID, Text: "expired", CreatedAt: now.Add(-retention - time.Hour)}
	boundary := &Message{ChatID: chat.ID, Text: "boundary", CreatedAt: now.Add(-retention)}
	fresh := &Message{ChatID: chat.ID, Text: "fresh", CreatedAt: now}
	for _, m := range []*Message{expired, boundary, fresh} {
		require.NoError(t, store.CreateMessage(ctx, m))
	}

	purged, err := store.PurgeMessages(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	remaining, err := store.ListMessages(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	// Age == retention exactly is retained: the boundary is strictly-older-than
	assert.Equal(t, "boundary", remaining[0].Text)
	assert.Equal(t, "fresh", remaining[1].Text)
}

func TestStore_Webhooks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, store, "Widget Chat")
	hook := &Webhook{ProjectID: p.PublicKey, EventTrigger: "On New Message", URL: "https://example.com/hook", Secret: "whk-test", CreatedAt: time.Now()}
	require.NoError(t, store.CreateWebhook(ctx, hook))

	got, err := store.GetWebhook(ctx, p.PublicKey, "On New Message")
	require.NoError(t, err)
	assert.Equal(t, hook.URL, got.URL)

	// One hook per (project, trigger)
	dup := &Webhook{ProjectID: p.PublicKey, EventTrigger: "On New Message", URL: "https://example.com/other", Secret: "whk-dup", CreatedAt: time.Now()}
	assert.ErrorIs(t, store.CreateWebhook(ctx, dup), ErrDuplicate)

	// Unregistered trigger is simply not found
	_, err = store.GetWebhook(ctx, p.PublicKey, "On Delete Chat")
	assert.ErrorIs(t, err, ErrNotFound)
}
