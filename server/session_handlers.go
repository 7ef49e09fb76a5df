package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jrsteele09/go-session-service/sessions"
)

// HealthHandler reports whether the configured storage backend is reachable.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.service.ValidateConnection(r.Context()) {
			respondError(w, http.StatusServiceUnavailable, "storage backend unreachable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ValidateHandler checks the Authorization bearer against both the token
// signature and the persisted session. A verifiable token whose session has
// been invalidated is rejected.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		t, err := s.codec.Decode(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		sess := s.service.Get(r.Context(), t.Subject, t.ID)
		if sess == nil {
			respondError(w, http.StatusUnauthorized, "session not active")
			return
		}
		respondJSON(w, http.StatusOK, sess)
	}
}

// ListSessionsHandler lists a user's sessions. Query parameters: offset,
// limit, include_expired.
func (s *Server) ListSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		opts := sessions.ListOptions{
			Offset:         queryInt(r, "offset"),
			Limit:          queryInt(r, "limit"),
			IncludeExpired: r.URL.Query().Get("include_expired") == "true",
		}

		found := s.service.GetMany(r.Context(), []string{userID}, opts)
		if found == nil {
			respondError(w, http.StatusServiceUnavailable, "session lookup failed")
			return
		}
		respondJSON(w, http.StatusOK, found)
	}
}

// InvalidateHandler revokes a single session. A backend fault is surfaced as
// 502 after being queued for retry.
func (s *Server) InvalidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		sessionID := chi.URLParam(r, "sessionID")

		ok, err := s.service.Invalidate(r.Context(), userID, sessionID)
		if err != nil {
			respondError(w, http.StatusBadGateway, "invalidation failed, queued for retry")
			return
		}
		if !ok {
			respondError(w, http.StatusServiceUnavailable, "backend refused invalidation")
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
	}
}

// InvalidateAllHandler revokes every session of the user and returns the ids
// that were transitioned.
func (s *Server) InvalidateAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		ids, err := s.service.InvalidateAll(r.Context(), userID)
		if err != nil {
			respondError(w, http.StatusBadGateway, "invalidation failed, queued for retry")
			return
		}
		if ids == nil {
			respondError(w, http.StatusServiceUnavailable, "backend refused invalidation")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"invalidated": ids})
	}
}

type purgeRequest struct {
	UserIDs     []string `json:"user_ids"`
	OnlyExpired bool     `json:"only_expired"`
	OnlyInvalid bool     `json:"only_invalid"`
}

// PurgeHandler physically removes dead sessions for the given users.
func (s *Server) PurgeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req purgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.UserIDs) == 0 {
			respondError(w, http.StatusBadRequest, "user_ids is required")
			return
		}

		if !s.service.DeleteOld(r.Context(), req.UserIDs, req.OnlyExpired, req.OnlyInvalid) {
			respondError(w, http.StatusServiceUnavailable, "purge failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"purged": true})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
