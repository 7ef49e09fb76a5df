// Package server is the HTTP surface over the session service: local and
// OAuth logins mint tokens and sessions, bearer validation checks them, and
// the management endpoints list, invalidate and purge them.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/internal/config"
	"github.com/jrsteele09/go-session-service/providers"
	"github.com/jrsteele09/go-session-service/server/oauthstate"
	"github.com/jrsteele09/go-session-service/sessions"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/users"
)

type Server struct {
	router   chi.Router
	config   config.Config
	log      zerolog.Logger
	service  *sessions.Service
	users    users.Repo
	codec    *token.Codec
	registry *providers.Registry
	flows    oauthstate.Repo
}

func New(cfg config.Config, service *sessions.Service, userRepo users.Repo, codec *token.Codec, registry *providers.Registry, logger zerolog.Logger) (*Server, error) {
	if service == nil || userRepo == nil || codec == nil {
		return nil, errors.New("[New] service, user repo and token codec are required")
	}
	if registry == nil {
		registry = providers.NewRegistry()
	}

	s := &Server{
		config:   cfg,
		log:      logger,
		service:  service,
		users:    userRepo,
		codec:    codec,
		registry: registry,
		flows:    oauthstate.NewInMemoryRepo(),
	}
	s.router = s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", s.HealthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.LoginHandler())
		r.Get("/oauth/{provider}/login", s.OAuthLoginHandler())
		r.Get("/oauth/{provider}/callback", s.OAuthCallbackHandler())

		r.Get("/sessions/validate", s.ValidateHandler())
		r.Post("/sessions/purge", s.PurgeHandler())

		r.Route("/users/{userID}/sessions", func(r chi.Router) {
			r.Get("/", s.ListSessionsHandler())
			r.Delete("/", s.InvalidateAllHandler())
			r.Delete("/{sessionID}", s.InvalidateHandler())
		})
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	origins := s.config.GetAllowedOrigins()
	if len(origins) == 0 {
		return []string{"*"}
	}
	list := make([]string, 0, len(origins))
	for origin := range origins {
		list = append(list, origin)
	}
	return list
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
