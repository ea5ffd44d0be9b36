// ABOUTME: Tests for the four authentication schemes and the chain.
// ABOUTME: Covers enumeration resistance, fallback order and inactive refusal.

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoutbox/shoutbox/internal/store"
)

// testEnv bundles a temporary store with a fully wired chain.
type testEnv struct {
	store   *store.SQLiteStore
	chain   *Chain
	watcher *InactiveWatcher
	alerts  *recordingNotifier
}

// recordingNotifier counts owner alerts instead of sending email.
type recordingNotifier struct {
	calls []string
	fail  bool
}

func (n *recordingNotifier) NotifyProjectInactive(_ context.Context, p *store.Project) error {
	if n.fail {
		return assert.AnError
	}
	n.calls = append(n.calls, p.PublicKey)
	return nil
}

func setupAuth(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	alerts := &recordingNotifier{}
	watcher := NewInactiveWatcher(st, alerts, nil)
	chain := NewChain(nil, 0, nil,
		&UserSecretScheme{Store: st, Inactive: watcher},
		&PrivateKeyScheme{Store: st, Inactive: watcher},
		&ChatAccessScheme{Store: st, Inactive: watcher},
		&SessionTokenScheme{Store: st, Inactive: watcher},
	)
	return &testEnv{store: st, chain: chain, watcher: watcher, alerts: alerts}
}

func (e *testEnv) newProject(t *testing.T, active bool) *store.Project {
	t.Helper()
	p := &store.Project{
		PublicKey:          uuid.New().String(),
		PrivateKey:         uuid.New().String(),
		OwnerEmail:         "owner@example.com",
		Title:              "Test Project",
		IsActive:           active,
		PlanType:           store.PlanProfessional,
		MessageHistoryDays: 30,
		CreatedAt:          time.Now(),
	}
	require.NoError(t, e.store.CreateProject(context.Background(), p))
	return p
}

func (e *testEnv) newPerson(t *testing.T, projectID, username, secret string) *store.Person {
	t.Helper()
	hashed, err := HashSecret(secret)
	require.NoError(t, err)
	p := &store.Person{
		ProjectID: projectID,
		Username:  username,
		Secret:    hashed,
		CreatedAt: time.Now(),
	}
	require.NoError(t, e.store.CreatePerson(context.Background(), p))
	return p
}

func (e *testEnv) newChat(t *testing.T, projectID string, adminID *int64) *store.Chat {
	t.Helper()
	c := &store.Chat{
		ProjectID: projectID,
		AdminID:   adminID,
		Title:     "General",
		AccessKey: "ca-" + uuid.New().String(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, e.store.CreateChat(context.Background(), c))
	return c
}

func TestUserSecret_Resolves(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	person := env.newPerson(t, project.PublicKey, "alice", "hunter2")

	id, err := env.chain.Authenticate(ctx, &Credentials{
		PublicKey: project.PublicKey,
		Username:  "alice",
		Secret:    "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, ActorPerson, id.Actor.Kind)
	assert.Equal(t, person.ID, id.Actor.Person.ID)
	assert.Equal(t, project.PublicKey, id.Project.PublicKey)
}

func TestUserSecret_EnumerationResistant(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	env.newPerson(t, project.PublicKey, "alice", "hunter2")

	// Wrong secret and unknown username must yield the same error value.
	_, errSecret := env.chain.Authenticate(ctx, &Credentials{
		PublicKey: project.PublicKey,
		Username:  "alice",
		Secret:    "wrong",
	})
	_, errUser := env.chain.Authenticate(ctx, &Credentials{
		PublicKey: project.PublicKey,
		Username:  "nobody",
		Secret:    "hunter2",
	})
	require.Error(t, errSecret)
	require.Error(t, errUser)
	assert.Equal(t, errSecret, errUser)
}

func TestUserSecret_UnknownProjectFallsThrough(t *testing.T) {
	env := setupAuth(t)

	_, err := env.chain.Authenticate(context.Background(), &Credentials{
		PublicKey: uuid.New().String(),
		Username:  "alice",
		Secret:    "hunter2",
	})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPrivateKey_ExplicitUsername(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	env.newPerson(t, project.PublicKey, "alice", "hunter2")
	bob := env.newPerson(t, project.PublicKey, "bob", "s3cret")

	id, err := env.chain.Authenticate(ctx, &Credentials{
		PrivateKey: project.PrivateKey,
		Username:   "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, ActorPerson, id.Actor.Kind)
	assert.Equal(t, bob.ID, id.Actor.Person.ID)

	// No secret required on the private-key path.
	_, err = env.chain.Authenticate(ctx, &Credentials{
		PrivateKey: project.PrivateKey,
		Username:   "nobody",
	})
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestPrivateKey_ChatAdminFallback(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	env.newPerson(t, project.PublicKey, "alice", "hunter2")
	admin := env.newPerson(t, project.PublicKey, "bob", "s3cret")
	chat := env.newChat(t, project.PublicKey, &admin.ID)

	// A private key paired with a chat id impersonates the chat's admin.
	// The private-key scheme runs before chat access, so the chain must
	// not downgrade the caller to a chat proxy actor.
	id, err := env.chain.Authenticate(ctx, &Credentials{
		PrivateKey: project.PrivateKey,
		ChatID:     chat.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, ActorPerson, id.Actor.Kind)
	assert.Equal(t, admin.ID, id.Actor.Person.ID)
	assert.True(t, id.Elevated)
}

func TestPrivateKey_FirstPersonFallback(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	first := env.newPerson(t, project.PublicKey, "alice", "hunter2")
	env.newPerson(t, project.PublicKey, "bob", "s3cret")

	id, err := env.chain.Authenticate(ctx, &Credentials{PrivateKey: project.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, ActorPerson, id.Actor.Kind)
	assert.Equal(t, first.ID, id.Actor.Person.ID)
	assert.True(t, id.Elevated, "private-key identities keep project authority")
}

func TestPrivateKey_EmptyProjectActsAsNone(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)

	id, err := env.chain.Authenticate(ctx, &Credentials{PrivateKey: project.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, ActorNone, id.Actor.Kind)
	require.NotNil(t, id.Project)
	assert.Equal(t, project.PublicKey, id.Project.PublicKey)
}

func TestChatAccess_PublicKeyPath(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	chat := env.newChat(t, project.PublicKey, nil)

	id, err := env.chain.Authenticate(ctx, &Credentials{
		PublicKey: project.PublicKey,
		ChatID:    chat.ID,
		AccessKey: chat.AccessKey,
	})
	require.NoError(t, err)
	assert.Equal(t, ActorChat, id.Actor.Kind)
	assert.Equal(t, chat.ID, id.Actor.Chat.ID)

	// A wrong access key looks like a missing chat and fails the chain.
	_, err = env.chain.Authenticate(ctx, &Credentials{
		PublicKey: project.PublicKey,
		ChatID:    chat.ID,
		AccessKey: "ca-" + uuid.New().String(),
	})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	person := env.newPerson(t, project.PublicKey, "alice", "hunter2")

	session, err := env.store.GetOrCreateSession(ctx, person.ID)
	require.NoError(t, err)

	id, err := env.chain.Authenticate(ctx, &Credentials{SessionToken: session.Token})
	require.NoError(t, err)
	assert.Equal(t, ActorPerson, id.Actor.Kind)
	assert.Equal(t, person.ID, id.Actor.Person.ID)
	assert.Equal(t, project.PublicKey, id.Project.PublicKey)

	_, err = env.chain.Authenticate(ctx, &Credentials{SessionToken: "st-" + uuid.New().String()})
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestInactive_RefusedOnEveryScheme(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, false)
	person := env.newPerson(t, project.PublicKey, "alice", "hunter2")
	session, err := env.store.GetOrCreateSession(ctx, person.ID)
	require.NoError(t, err)

	creds := []*Credentials{
		{PublicKey: project.PublicKey, Username: "alice", Secret: "hunter2"},
		{PrivateKey: project.PrivateKey},
		{SessionToken: session.Token},
	}
	for _, c := range creds {
		_, err := env.chain.Authenticate(ctx, c)
		assert.ErrorIs(t, err, ErrInactive)
	}
}

func TestInactive_AlertsOwnerOncePerCooldown(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, false)
	env.newPerson(t, project.PublicKey, "alice", "hunter2")

	creds := &Credentials{PublicKey: project.PublicKey, Username: "alice", Secret: "hunter2"}

	for i := 0; i < 3; i++ {
		_, err := env.chain.Authenticate(ctx, creds)
		require.ErrorIs(t, err, ErrInactive)
	}
	assert.Len(t, env.alerts.calls, 1, "repeat attempts inside the cooldown must not re-alert")

	// The stamp is persisted, not just held in memory.
	stored, err := env.store.GetProject(ctx, project.PublicKey)
	require.NoError(t, err)
	require.NotNil(t, stored.LastInactiveNotice)

	// Once the stamp ages past the cooldown the next attempt alerts again.
	env.watcher.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = env.chain.Authenticate(ctx, creds)
	require.ErrorIs(t, err, ErrInactive)
	assert.Len(t, env.alerts.calls, 2)
}

func TestInactive_FailedAlertDoesNotStamp(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, false)
	env.alerts.fail = true

	_, err := env.chain.Authenticate(ctx, &Credentials{PrivateKey: project.PrivateKey})
	require.ErrorIs(t, err, ErrInactive)

	stored, err := env.store.GetProject(ctx, project.PublicKey)
	require.NoError(t, err)
	assert.Nil(t, stored.LastInactiveNotice, "a failed alert should retry on the next attempt")
}

func TestChain_NoCredentials(t *testing.T) {
	env := setupAuth(t)

	_, err := env.chain.Authenticate(context.Background(), &Credentials{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
