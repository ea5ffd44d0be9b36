// ABOUTME: HTTP surface for the chat API: routing and auth middleware.
// ABOUTME: Each endpoint runs an ordered scheme chain before its handler.

package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/chat"
	"github.com/shoutbox/shoutbox/internal/guard"
	"github.com/shoutbox/shoutbox/internal/store"
)

// Server wires the chat service and the authentication chains into an
// http.Handler. REST endpoints accept user-secret, chat-access and
// private-key credentials in that order; the session endpoints accept
// session tokens; webhook configuration requires a collaborator JWT.
type Server struct {
	store    store.Store
	svc      *chat.Service
	guard    *guard.Guard
	rest     *auth.Chain
	session  *auth.Chain
	verifier auth.TokenVerifier
	watcher  *auth.InactiveWatcher
	logger   *slog.Logger
	mux      *http.ServeMux
}

// Options bundles the server's collaborators.
type Options struct {
	Store     store.Store
	Service   *chat.Service
	Guard     *guard.Guard
	RestChain *auth.Chain
	SessChain *auth.Chain
	Verifier  auth.TokenVerifier
	Watcher   *auth.InactiveWatcher
	Logger    *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    opts.Store,
		svc:      opts.Service,
		guard:    opts.Guard,
		rest:     opts.RestChain,
		session:  opts.SessChain,
		verifier: opts.Verifier,
		watcher:  opts.Watcher,
		logger:   logger.With("component", "http"),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Chats
	s.mux.HandleFunc("GET /chats", s.withAuth(s.handleListChats))
	s.mux.HandleFunc("POST /chats", s.withAuth(s.handleCreateChat))
	s.mux.HandleFunc("PUT /chats", s.withAuth(s.handleGetOrCreateChat))
	s.mux.HandleFunc("GET /chats/{id}", s.withChatAuth(s.handleGetChat))
	s.mux.HandleFunc("PATCH /chats/{id}", s.withChatAuth(s.handleEditChat))
	s.mux.HandleFunc("DELETE /chats/{id}", s.withChatAuth(s.handleDeleteChat))
	s.mux.HandleFunc("POST /chats/{id}/typing", s.withChatAuth(s.handleTyping))

	// Chat membership
	s.mux.HandleFunc("GET /chats/{id}/people", s.withChatAuth(s.handleListPeople))
	s.mux.HandleFunc("POST /chats/{id}/people", s.withChatAuth(s.handleAddPerson))
	s.mux.HandleFunc("PUT /chats/{id}/people", s.withChatAuth(s.handleRemovePerson))
	s.mux.HandleFunc("DELETE /chats/{id}/people", s.withChatAuth(s.handleLeaveChat))

	// Messages
	s.mux.HandleFunc("GET /chats/{id}/messages", s.withChatAuth(s.handleListMessages))
	s.mux.HandleFunc("POST /chats/{id}/messages", s.withChatAuth(s.handleSendMessage))
	s.mux.HandleFunc("GET /chats/{id}/messages/{message_id}", s.withChatAuth(s.handleGetMessage))
	s.mux.HandleFunc("PATCH /chats/{id}/messages/{message_id}", s.withChatAuth(s.handleEditMessage))
	s.mux.HandleFunc("DELETE /chats/{id}/messages/{message_id}", s.withChatAuth(s.handleDeleteMessage))

	// Users
	s.mux.HandleFunc("GET /users", s.withAuth(s.handleListUsers))
	s.mux.HandleFunc("POST /users", s.withAuth(s.handleCreateUser))
	s.mux.HandleFunc("PATCH /users/{id}", s.withAuth(s.handleUpdateUser))
	s.mux.HandleFunc("DELETE /users/{id}", s.withAuth(s.handleDeleteUser))
	s.mux.HandleFunc("GET /users/me", s.withAuth(s.handleMe))
	s.mux.HandleFunc("GET /users/me/session", s.withAuth(s.handleMySession))
	s.mux.HandleFunc("GET /users/session_auth/{token}", s.handleSessionAuth)

	// Webhook configuration (collaborator JWT)
	s.mux.HandleFunc("GET /webhooks", s.withAdmin(s.handleListWebhooks))
	s.mux.HandleFunc("POST /webhooks", s.withAdmin(s.handleCreateWebhook))
	s.mux.HandleFunc("DELETE /webhooks/{id}", s.withAdmin(s.handleDeleteWebhook))

	// Maintenance
	s.mux.HandleFunc("POST /crons/purge", s.withAuth(s.handlePurge))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// withAuth authenticates through the REST chain and stores the identity
// on the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := auth.CredentialsFromRequest(r)
		s.authenticate(w, r, creds, next)
	}
}

// withChatAuth is withAuth for chat-scoped routes: the chat id from the
// path overrides the header so chat-access credentials resolve against
// the chat actually addressed.
func (s *Server) withChatAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := auth.CredentialsFromRequest(r)
		if id, err := strconv.ParseInt(r.PathValue("id"), 10, 64); err == nil {
			creds.ChatID = id
		}
		s.authenticate(w, r, creds, next)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, creds *auth.Credentials, next http.HandlerFunc) {
	identity, err := s.rest.Authenticate(r.Context(), creds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
}

// withAdmin authenticates a collaborator bearer token against the
// project named in the public-key header.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.AdminFromRequest(r.Context(), r, s.verifier, s.store, s.watcher)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	}
}

// identity pulls the authenticated identity off the context. The auth
// middleware guarantees it is present on protected routes.
func (s *Server) identity(r *http.Request) *auth.Identity {
	return auth.IdentityFromContext(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePurge removes messages past each project's retention window.
// Exposed for the cron runner; any project-level credential may call it.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	if dec := s.guard.ManageProject(id); dec != guard.Allow {
		s.writeDecision(w, dec)
		return
	}
	purged, err := s.svc.PurgeOldMessages(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

// chatID parses the {id} path segment.
func chatID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
