package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-service/providers"
	"github.com/jrsteele09/go-session-service/server/oauthstate"
	"github.com/jrsteele09/go-session-service/sessions"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/users"
)

type loginRequest struct {
	Username   string `json:"username"`
	BearerType string `json:"bearer_type"`
}

type loginResponse struct {
	Token   string            `json:"token"`
	Session *sessions.Session `json:"session"`
}

// LoginHandler mints a token and session for an already-authenticated local
// user. Credential verification happens upstream; this service only manages
// the session lifecycle.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" {
			respondError(w, http.StatusBadRequest, "username is required")
			return
		}

		user, err := s.users.GetByUsername(r.Context(), req.Username)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				respondError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			respondError(w, http.StatusServiceUnavailable, "user lookup failed")
			return
		}

		resp, err := s.mintSession(r, user, token.ProviderLocal, bearerTypeOf(req.BearerType))
		if err != nil {
			s.log.Error().Err(err).Str("username", req.Username).Msg("local login failed")
			respondError(w, http.StatusServiceUnavailable, "could not create session")
			return
		}
		respondJSON(w, http.StatusCreated, resp)
	}
}

// OAuthLoginHandler starts an OAuth login by redirecting to the provider's
// authorization endpoint with a stored state parameter.
func (s *Server) OAuthLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		provider, err := s.registry.Get(providerName)
		if err != nil {
			respondError(w, http.StatusNotFound, "unknown provider")
			return
		}

		state := uuid.NewString()
		if err := s.flows.Upsert(state, &oauthstate.FlowState{
			Provider:  providerName,
			ReturnURL: r.URL.Query().Get("return_url"),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			respondError(w, http.StatusInternalServerError, "could not start login")
			return
		}

		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// OAuthCallbackHandler completes an OAuth login: verify the state, exchange
// the code for an identity, resolve the local user, and mint a session with
// the provider recorded as its issuer.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		provider, err := s.registry.Get(providerName)
		if err != nil {
			respondError(w, http.StatusNotFound, "unknown provider")
			return
		}

		state := r.URL.Query().Get("state")
		flow, err := s.flows.Get(state)
		if err != nil || flow.Provider != providerName {
			respondError(w, http.StatusBadRequest, "invalid or expired state")
			return
		}
		_ = s.flows.Delete(state)

		code := r.URL.Query().Get("code")
		if code == "" {
			respondError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		identity, err := provider.Exchange(r.Context(), code)
		if err != nil {
			s.log.Error().Err(err).Str("provider", providerName).Msg("oauth exchange failed")
			respondError(w, http.StatusUnauthorized, "provider exchange failed")
			return
		}

		user, err := s.resolveUser(r, identity)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "no local user for identity")
			return
		}

		resp, err := s.mintSession(r, user, providerName, sessions.BearerToken)
		if err != nil {
			s.log.Error().Err(err).Str("provider", providerName).Msg("oauth login failed")
			respondError(w, http.StatusServiceUnavailable, "could not create session")
			return
		}
		respondJSON(w, http.StatusCreated, resp)
	}
}

// mintSession issues a token for the user and persists the matching session.
func (s *Server) mintSession(r *http.Request, user *users.User, provider string, bearerType sessions.BearerType) (*loginResponse, error) {
	t := s.codec.CreateForUser(user, s.config.GetSessionTTL(), provider)
	signed, err := s.codec.Encode(t)
	if err != nil {
		return nil, err
	}

	sess, err := sessions.FromToken(t, bearerType)
	if err != nil {
		return nil, err
	}

	created := s.service.Create(r.Context(), sess)
	if created == nil {
		return nil, errors.New("[mintSession] session store refused the session")
	}
	return &loginResponse{Token: signed, Session: created}, nil
}

// resolveUser maps a provider identity onto a local user, trying the provider
// username first and the email second.
func (s *Server) resolveUser(r *http.Request, identity *providers.Identity) (*users.User, error) {
	if identity.Username != "" {
		if user, err := s.users.GetByUsername(r.Context(), identity.Username); err == nil {
			return user, nil
		}
	}
	if identity.Email != "" {
		return s.users.GetByUsername(r.Context(), identity.Email)
	}
	return nil, users.ErrUserNotFound
}

func bearerTypeOf(raw string) sessions.BearerType {
	if raw == string(sessions.BearerCookie) {
		return sessions.BearerCookie
	}
	return sessions.BearerToken
}
