// ABOUTME: End-to-end tests for the HTTP surface over a real SQLite store.
// ABOUTME: Exercises header auth, status mapping and tenant isolation.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/chat"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/guard"
	"github.com/shoutbox/shoutbox/internal/store"
)

const jwtTestSecret = "server-test-secret"

type noopNotifier struct{}

func (noopNotifier) SendMessageEmail(context.Context, *store.Project, *store.Message, string) error {
	return nil
}
func (noopNotifier) NotifyProjectInactive(context.Context, *store.Project) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, *fanout.Envelope) {}

type serverEnv struct {
	store    *store.SQLiteStore
	server   *Server
	verifier *auth.JWTVerifier
	project  *store.Project
}

func setupServer(t *testing.T) *serverEnv {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	watcher := auth.NewInactiveWatcher(st, noopNotifier{}, nil)
	rest := auth.NewChain(nil, 0, nil,
		&auth.UserSecretScheme{Store: st, Inactive: watcher},
		&auth.PrivateKeyScheme{Store: st, Inactive: watcher},
		&auth.ChatAccessScheme{Store: st, Inactive: watcher},
	)
	session := auth.NewChain(nil, 0, nil,
		&auth.SessionTokenScheme{Store: st, Inactive: watcher},
	)

	dispatcher := fanout.NewDispatcher(noopPublisher{},
		fanout.NewWebhookSender(st, 0, nil),
		fanout.NewEmailer(st, noopNotifier{}, nil),
		nil,
	)
	g := guard.New(st, nil)
	verifier := auth.NewJWTVerifier([]byte(jwtTestSecret))

	srv := New(Options{
		Store:     st,
		Service:   chat.NewService(st, g, dispatcher, nil),
		Guard:     g,
		RestChain: rest,
		SessChain: session,
		Verifier:  verifier,
		Watcher:   watcher,
	})

	project := &store.Project{
		PublicKey:          uuid.New().String(),
		PrivateKey:         uuid.New().String(),
		OwnerEmail:         "owner@example.com",
		Title:              "Server Test",
		IsActive:           true,
		PlanType:           store.PlanProfessional,
		MessageHistoryDays: 30,
		CreatedAt:          time.Now(),
	}
	require.NoError(t, st.CreateProject(context.Background(), project))

	return &serverEnv{store: st, server: srv, verifier: verifier, project: project}
}

func (e *serverEnv) person(t *testing.T, username string) *store.Person {
	t.Helper()
	hashed, err := auth.HashSecret("secret")
	require.NoError(t, err)
	p := &store.Person{
		ProjectID: e.project.PublicKey,
		Username:  username,
		Secret:    hashed,
		Email:     username + "@example.com",
		CreatedAt: time.Now(),
	}
	require.NoError(t, e.store.CreatePerson(context.Background(), p))
	return p
}

// userHeaders is the header set a logged-in end user sends.
func (e *serverEnv) userHeaders(username string) map[string]string {
	return map[string]string{
		auth.HeaderPublicKey:  e.project.PublicKey,
		auth.HeaderUserName:   username,
		auth.HeaderUserSecret: "secret",
	}
}

func (e *serverEnv) adminHeaders(t *testing.T, email string) map[string]string {
	t.Helper()
	token, err := e.verifier.Generate(email, time.Hour)
	require.NoError(t, err)
	return map[string]string{
		"Authorization":      "Bearer " + token,
		auth.HeaderPublicKey: e.project.PublicKey,
	}
}

func (e *serverEnv) do(t *testing.T, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := setupServer(t)
	rec := env.do(t, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserSecretAuth(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")

	rec := env.do(t, "GET", "/chats", env.userHeaders("alice"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	badSecret := env.userHeaders("alice")
	badSecret[auth.HeaderUserSecret] = "wrong"
	recSecret := env.do(t, "GET", "/chats", badSecret, nil)
	require.Equal(t, http.StatusUnauthorized, recSecret.Code)

	// An unknown username must be indistinguishable from a wrong secret.
	recUser := env.do(t, "GET", "/chats", env.userHeaders("nobody"), nil)
	require.Equal(t, http.StatusUnauthorized, recUser.Code)
	assert.Equal(t, recSecret.Body.String(), recUser.Body.String())
}

func TestChatLifecycle(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")
	headers := env.userHeaders("alice")

	rec := env.do(t, "POST", "/chats", headers, map[string]any{"title": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[fanout.ChatPayload](t, rec)
	assert.Equal(t, "General", created.Title)
	assert.Contains(t, created.AccessKey, "ca-")
	require.NotNil(t, created.AdminID)

	chatPath := fmt.Sprintf("/chats/%d", created.ID)

	rec = env.do(t, "GET", chatPath, headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "PATCH", chatPath, headers, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[fanout.ChatPayload](t, rec).Title)

	rec = env.do(t, "POST", chatPath+"/messages", headers, map[string]any{"text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sent := decode[sendMessageResponse](t, rec)
	assert.Equal(t, "hello", sent.Message.Text)
	assert.Equal(t, "alice", sent.Message.SenderUsername)

	rec = env.do(t, "GET", chatPath+"/messages", headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[[]fanout.MessagePayload](t, rec)
	require.Len(t, msgs, 1)

	msgPath := fmt.Sprintf("%s/messages/%d", chatPath, sent.Message.ID)
	rec = env.do(t, "PATCH", msgPath, headers, map[string]any{"text": "edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decode[fanout.MessagePayload](t, rec).Text)

	rec = env.do(t, "DELETE", msgPath, headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "DELETE", chatPath, headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", chatPath, headers, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptyMessageRejected(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")
	headers := env.userHeaders("alice")

	rec := env.do(t, "POST", "/chats", headers, map[string]any{"title": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[fanout.ChatPayload](t, rec)

	rec = env.do(t, "POST", fmt.Sprintf("/chats/%d/messages", created.ID), headers, map[string]any{"text": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatAccessKeyAuth(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")
	rec := env.do(t, "POST", "/chats", env.userHeaders("alice"), map[string]any{"title": "Support"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[fanout.ChatPayload](t, rec)

	headers := map[string]string{
		auth.HeaderPublicKey: env.project.PublicKey,
		auth.HeaderAccessKey: created.AccessKey,
	}
	rec = env.do(t, "GET", fmt.Sprintf("/chats/%d", created.ID), headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	headers[auth.HeaderAccessKey] = "ca-wrong"
	rec = env.do(t, "GET", fmt.Sprintf("/chats/%d", created.ID), headers, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCrossTenantLooksLikeNotFound(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")

	other := &store.Project{
		PublicKey:  uuid.New().String(),
		PrivateKey: uuid.New().String(),
		OwnerEmail: "other@example.com",
		Title:      "Other",
		IsActive:   true,
		PlanType:   store.PlanProfessional,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, env.store.CreateProject(context.Background(), other))
	foreign := &store.Chat{
		ProjectID: other.PublicKey,
		Title:     "Foreign",
		AccessKey: "ca-" + uuid.New().String(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.store.CreateChat(context.Background(), foreign))

	rec := env.do(t, "GET", fmt.Sprintf("/chats/%d", foreign.ID), env.userHeaders("alice"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrivateKeyActsForProject(t *testing.T) {
	env := setupServer(t)
	alice := env.person(t, "alice")

	headers := map[string]string{auth.HeaderPrivateKey: env.project.PrivateKey}
	rec := env.do(t, "POST", "/chats", headers, map[string]any{"title": "Backstage"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[fanout.ChatPayload](t, rec)
	// The private key resolves to the project's first person.
	require.NotNil(t, created.AdminID)
	assert.Equal(t, alice.ID, *created.AdminID)

	named := map[string]string{
		auth.HeaderPrivateKey: env.project.PrivateKey,
		auth.HeaderUserName:   "alice",
	}
	rec = env.do(t, "GET", "/users/me", named, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[fanout.PersonPayload](t, rec).Username)
}

func TestPrivateKeyOnChatPathActsAsChatAdmin(t *testing.T) {
	env := setupServer(t)
	alice := env.person(t, "alice")

	rec := env.do(t, "POST", "/chats", env.userHeaders("alice"), map[string]any{"title": "Ops"})
	require.Equal(t, http.StatusCreated, rec.Code)
	chat := decode[fanout.ChatPayload](t, rec)

	// Chat routes inject the path chat id into the credentials; a private
	// key there must still speak as the chat's admin, not as the chat.
	headers := map[string]string{auth.HeaderPrivateKey: env.project.PrivateKey}
	path := fmt.Sprintf("/chats/%d/messages", chat.ID)
	rec = env.do(t, "POST", path, headers, map[string]any{"text": "status?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sent := decode[sendMessageResponse](t, rec)
	require.NotNil(t, sent.Message.SenderID)
	assert.Equal(t, alice.ID, *sent.Message.SenderID)
	assert.Equal(t, "alice", sent.Message.SenderUsername)
}

func TestUserManagement(t *testing.T) {
	env := setupServer(t)
	headers := map[string]string{auth.HeaderPrivateKey: env.project.PrivateKey}

	rec := env.do(t, "POST", "/users", headers, map[string]any{
		"username": "bob", "secret": "hunter2", "email": "bob@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := decode[fanout.PersonPayload](t, rec)
	assert.Equal(t, "bob", bob.Username)

	rec = env.do(t, "PATCH", fmt.Sprintf("/users/%d", bob.ID), headers, map[string]any{
		"username": "bob", "email": "bobby@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bobby@example.com", decode[fanout.PersonPayload](t, rec).Email)

	rec = env.do(t, "DELETE", fmt.Sprintf("/users/%d", bob.ID), headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/users", headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]fanout.PersonPayload](t, rec))
}

func TestUserManagementForbiddenForEndUsers(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")

	rec := env.do(t, "POST", "/users", env.userHeaders("alice"), map[string]any{
		"username": "eve", "secret": "x",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")

	rec := env.do(t, "GET", "/users/me/session", env.userHeaders("alice"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[sessionResponse](t, rec)
	assert.Contains(t, session.Token, "st-")

	rec = env.do(t, "GET", "/users/session_auth/"+session.Token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[fanout.PersonPayload](t, rec).Username)

	rec = env.do(t, "GET", "/users/session_auth/st-bogus", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAdministration(t *testing.T) {
	env := setupServer(t)
	collab := &store.Collaborator{
		Email:     "owner@example.com",
		ProjectID: env.project.PublicKey,
		Role:      store.RoleAdmin,
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.store.CreateCollaborator(context.Background(), collab))
	headers := env.adminHeaders(t, "owner@example.com")

	rec := env.do(t, "POST", "/webhooks", headers, map[string]any{
		"event_trigger": "On New Message",
		"url":           "https://example.com/hook",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	hook := decode[webhookResponse](t, rec)
	assert.Contains(t, hook.Secret, "whk-")

	rec = env.do(t, "POST", "/webhooks", headers, map[string]any{
		"event_trigger": "On Solar Eclipse",
		"url":           "https://example.com/hook",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/webhooks", headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]webhookResponse](t, rec), 1)

	rec = env.do(t, "DELETE", fmt.Sprintf("/webhooks/%d", hook.ID), headers, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A token signed by someone who is not a collaborator gets refused.
	rec = env.do(t, "GET", "/webhooks", env.adminHeaders(t, "stranger@example.com"), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInactiveProjectRefused(t *testing.T) {
	env := setupServer(t)
	env.person(t, "alice")
	env.project.IsActive = false
	require.NoError(t, env.store.UpdateProject(context.Background(), env.project))

	rec := env.do(t, "GET", "/chats", env.userHeaders("alice"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "inactive")
}
