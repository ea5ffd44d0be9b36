// ABOUTME: HTTP handlers for chat CRUD, membership and typing.
// ABOUTME: Thin decode-call-respond wrappers over the chat service.

package server

import (
	"net/http"
	"strconv"

	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

type chatRequest struct {
	Title    string `json:"title"`
	IsDirect bool   `json:"is_direct_chat"`
}

type chatByMembersRequest struct {
	Usernames []string `json:"usernames"`
	Title     string   `json:"title"`
	IsDirect  bool     `json:"is_direct_chat"`
}

type editChatRequest struct {
	Title    *string `json:"title"`
	IsDirect *bool   `json:"is_direct_chat"`
}

func chatPayloads(chats []*store.Chat) []*fanout.ChatPayload {
	out := make([]*fanout.ChatPayload, len(chats))
	for i, c := range chats {
		out[i] = fanout.NewChatPayload(c)
	}
	return out
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	chats, err := s.svc.ListChats(r.Context(), s.identity(r), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chatPayloads(chats))
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	created, err := s.svc.CreateChat(r.Context(), s.identity(r), req.Title, req.IsDirect)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fanout.NewChatPayload(created))
}

func (s *Server) handleGetOrCreateChat(w http.ResponseWriter, r *http.Request) {
	var req chatByMembersRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	found, created, err := s.svc.GetOrCreateChatByMembers(r.Context(), s.identity(r), req.Usernames, req.Title, req.IsDirect)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, fanout.NewChatPayload(found))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	found, err := s.svc.GetChat(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(found))
}

func (s *Server) handleEditChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req editChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	edited, err := s.svc.EditChat(r.Context(), s.identity(r), id, req.Title, req.IsDirect)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(edited))
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	deleted, err := s.svc.DeleteChat(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(deleted))
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	payload, err := s.svc.Typing(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

type personRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	people, err := s.svc.ListPeople(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]*fanout.PersonPayload, len(people))
	for i, p := range people {
		payloads[i] = fanout.NewPersonPayload(p)
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *Server) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req personRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	updated, err := s.svc.AddPerson(r.Context(), s.identity(r), id, req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(updated))
}

func (s *Server) handleRemovePerson(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req personRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	updated, err := s.svc.RemovePerson(r.Context(), s.identity(r), id, req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(updated))
}

func (s *Server) handleLeaveChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	updated, err := s.svc.LeaveChat(r.Context(), s.identity(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewChatPayload(updated))
}
