// Package app wires configuration, the storage backend, the token codec and
// the identity providers into a runnable server.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/internal/config"
	"github.com/jrsteele09/go-session-service/providers"
	"github.com/jrsteele09/go-session-service/providers/github"
	"github.com/jrsteele09/go-session-service/providers/google"
	"github.com/jrsteele09/go-session-service/server"
	"github.com/jrsteele09/go-session-service/sessions"
	"github.com/jrsteele09/go-session-service/sessions/dynamo"
	"github.com/jrsteele09/go-session-service/sessions/memcache"
	"github.com/jrsteele09/go-session-service/sessions/postgres"
	"github.com/jrsteele09/go-session-service/sessions/rediscache"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/users"
)

// App holds the assembled service and the resources it owns.
type App struct {
	Server  *server.Server
	Service *sessions.Service

	cleanup func()
}

// New assembles the application. The user repository is injected because the
// user directory lives upstream; the session backend is built here from
// configuration. Startup fails fast when the backend is unreachable.
func New(ctx context.Context, cfg config.Config, userRepo users.Repo, logger zerolog.Logger) (*App, error) {
	repo, cleanup, err := buildRepo(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	service, err := sessions.NewService(repo, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	if !service.ValidateConnection(ctx) {
		cleanup()
		return nil, errors.Errorf("[New] sessions backend %q is not reachable", cfg.GetSessionsBackend())
	}

	registry := buildRegistry(ctx, cfg, logger)

	codec, err := token.NewCodec([]byte(cfg.GetTokenSecret()), cfg.GetTokenAudience(), registry.Enabled())
	if err != nil {
		cleanup()
		return nil, err
	}

	srv, err := server.New(cfg, service, userRepo, codec, registry, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &App{Server: srv, Service: service, cleanup: cleanup}, nil
}

// Close releases the storage backend resources.
func (a *App) Close() {
	a.cleanup()
}

// buildRepo constructs the session storage backend named by SESSIONS_BACKEND
// and returns it with a release function.
func buildRepo(ctx context.Context, cfg config.Config, logger zerolog.Logger) (sessions.Repo, func(), error) {
	switch backend := cfg.GetSessionsBackend(); backend {
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.GetPostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool, logger), pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		return rediscache.New(client, cfg.GetCASRetries(), logger), func() { _ = client.Close() }, nil

	case config.BackendMemcached:
		return memcache.New(), func() {}, nil

	case config.BackendDynamoDB:
		return dynamo.New(), func() {}, nil

	default:
		return nil, nil, errors.Errorf("[buildRepo] unknown sessions backend %q", backend)
	}
}

// buildRegistry registers every identity provider whose credentials are
// configured. A provider that fails to initialise is logged and skipped so a
// broken discovery endpoint cannot keep the whole service down.
func buildRegistry(ctx context.Context, cfg config.Config, logger zerolog.Logger) *providers.Registry {
	var list []providers.Provider

	if cfg.GetGoogleClientID() != "" {
		p, err := google.New(ctx, cfg.GetGoogleClientID(), cfg.GetGoogleClientSecret(), cfg.GetOAuthRedirectURL())
		if err != nil {
			logger.Error().Err(err).Msg("skipping google identity provider")
		} else {
			list = append(list, p)
		}
	}

	if cfg.GetGithubClientID() != "" {
		p, err := github.New(cfg.GetGithubClientID(), cfg.GetGithubClientSecret(), cfg.GetOAuthRedirectURL())
		if err != nil {
			logger.Error().Err(err).Msg("skipping github identity provider")
		} else {
			list = append(list, p)
		}
	}

	return providers.NewRegistry(list...)
}
