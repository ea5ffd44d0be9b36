// ABOUTME: HTTP handlers for webhook registration, collaborator-only.
// ABOUTME: Each webhook gets a signing secret minted at creation.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

type webhookRequest struct {
	EventTrigger string `json:"event_trigger"`
	URL          string `json:"url"`
}

type webhookResponse struct {
	ID           int64  `json:"id"`
	EventTrigger string `json:"event_trigger"`
	URL          string `json:"url"`
	Secret       string `json:"secret"`
	Created      string `json:"created"`
}

func newWebhookResponse(w *store.Webhook) webhookResponse {
	return webhookResponse{
		ID:           w.ID,
		EventTrigger: w.EventTrigger,
		URL:          w.URL,
		Secret:       w.Secret,
		Created:      w.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	hooks, err := s.store.ListWebhooks(r.Context(), id.Project.PublicKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]webhookResponse, len(hooks))
	for i, h := range hooks {
		out[i] = newWebhookResponse(h)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	var req webhookRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" || !fanout.KnownTrigger(req.EventTrigger) {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Message: "unknown event trigger"})
		return
	}
	hook := &store.Webhook{
		ProjectID:    id.Project.PublicKey,
		EventTrigger: req.EventTrigger,
		URL:          req.URL,
		Secret:       "whk-" + uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateWebhook(r.Context(), hook); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newWebhookResponse(hook))
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	hookID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	if err := s.store.DeleteWebhook(r.Context(), id.Project.PublicKey, hookID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
