// ABOUTME: JSON response and error mapping helpers.
// ABOUTME: Auth and lookup failures share bodies so probing learns nothing.

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/chat"
	"github.com/shoutbox/shoutbox/internal/guard"
	"github.com/shoutbox/shoutbox/internal/store"
)

type errorBody struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", "error", err)
	}
}

// writeError maps service and auth errors onto the outward statuses.
// ErrBadCredential and ErrUnauthenticated share one body: the caller
// cannot tell a wrong secret from an unknown username or a missing
// credential.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrBadCredential):
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Message: "invalid credentials"})
	case errors.Is(err, auth.ErrInactive):
		s.writeJSON(w, http.StatusForbidden, errorBody{Message: "project is inactive"})
	case errors.Is(err, chat.ErrForbidden):
		s.writeJSON(w, http.StatusForbidden, errorBody{Message: "forbidden"})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Message: "not found"})
	case errors.Is(err, store.ErrDuplicate):
		s.writeJSON(w, http.StatusConflict, errorBody{Message: "already exists"})
	case errors.Is(err, chat.ErrEmptyMessage):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Message: "message has no content"})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
	}
}

// writeDecision maps a guard decision that is not Allow.
func (s *Server) writeDecision(w http.ResponseWriter, dec guard.Decision) {
	if dec == guard.Forbidden {
		s.writeJSON(w, http.StatusForbidden, errorBody{Message: "forbidden"})
		return
	}
	s.writeJSON(w, http.StatusNotFound, errorBody{Message: "not found"})
}

// decodeBody parses a JSON request body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body"})
		return false
	}
	return true
}
