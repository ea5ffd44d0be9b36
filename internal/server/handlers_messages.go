// ABOUTME: HTTP handlers for message listing and lifecycle.
// ABOUTME: The send response carries the email outcome from the dispatch.

package server

import (
	"net/http"
	"strconv"

	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

type messageRequest struct {
	Text string `json:"text"`
}

// sendMessageResponse reports the message plus what the fan-out did with
// it, mirroring what server-side callers poll for.
type sendMessageResponse struct {
	Message         *fanout.MessagePayload `json:"message"`
	EmailOutcome    string                 `json:"email_outcome,omitempty"`
	EmailRecipients []string               `json:"email_recipients,omitempty"`
}

func messageID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("message_id"), 10, 64)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	msgs, err := s.svc.ListMessages(r.Context(), s.identity(r), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]*fanout.MessagePayload, len(msgs))
	for i, m := range msgs {
		payloads[i] = fanout.NewMessagePayload(m)
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req messageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	msg, report, err := s.svc.SendMessage(r.Context(), s.identity(r), id, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sendMessageResponse{
		Message:         fanout.NewMessagePayload(msg),
		EmailOutcome:    report.EmailOutcome,
		EmailRecipients: report.EmailRecipients,
	})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	cid, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	mid, err := messageID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	// Viewing a message needs only chat visibility.
	chat, err := s.svc.GetChat(r.Context(), s.identity(r), cid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg, err := s.store.GetMessage(r.Context(), chat.ID, mid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewMessagePayload(msg))
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	cid, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	mid, err := messageID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	var req messageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	msg, err := s.svc.EditMessage(r.Context(), s.identity(r), cid, mid, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewMessagePayload(msg))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	cid, err := chatID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	mid, err := messageID(r)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	msg, err := s.svc.DeleteMessage(r.Context(), s.identity(r), cid, mid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fanout.NewMessagePayload(msg))
}
