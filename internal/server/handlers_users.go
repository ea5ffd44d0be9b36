// ABOUTME: HTTP handlers for people management, self-service lookups, and
// ABOUTME: session token exchange.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

type userRequest struct {
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	Expiry string `json:"expiry"`
}

func personID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func personPayloads(people []*store.Person) []*fanout.PersonPayload {
	payloads := make([]*fanout.PersonPayload, len(people))
	for i, p := range people {
		payloads[i] = fanout.NewPersonPayload(p)
	}
	return payloads
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	people, err := s.svc.ListUsers(r.Context(), s.identity(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, personPayloads(people))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	person := &store.Person{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	created, err := s.svc.CreateUser(r.Context(), s.identity(r), person, req.Secret)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fanout.NewPersonPayload(created))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req userRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	update := &store.Person{
		Username:  req.Username,
		Secret:    req.Secret,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	person, err := s.svc.UpdateUser(r.Context(), s.identity(r), id, update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewPersonPayload(person))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	person, err := s.svc.DeleteUser(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewPersonPayload(person))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	person, err := s.svc.Me(s.identity(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewPersonPayload(person))
}

func (s *Server) handleMySession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.SessionFor(r.Context(), s.identity(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{
		Token:  session.Token,
		Expiry: session.Expiry.UTC().Format(time.RFC3339),
	})
}

// handleSessionAuth exchanges a reconnect token for the person behind it.
// The token arrives in the path, so this route skips the header middleware
// and runs the session chain directly.
func (s *Server) handleSessionAuth(w http.ResponseWriter, r *http.Request) {
	creds := &auth.Credentials{SessionToken: r.PathValue("token")}
	id, err := s.session.Authenticate(r.Context(), creds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if id.Actor.Kind != auth.ActorPerson {
		s.writeError(w, store.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewPersonPayload(id.Actor.Person))
}
