// Package authcore is the composition root of the identity core. It wires the
// record store client, key directory, token service, refresh lifecycle,
// session orchestrator, and federation adapters from a single configuration.
// The serving layer on top of it is a separate concern.
package authcore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/cache"
	"github.com/quorali/authcore/config"
	"github.com/quorali/authcore/federation"
	"github.com/quorali/authcore/internal/logging"
	"github.com/quorali/authcore/keys"
	"github.com/quorali/authcore/notify"
	"github.com/quorali/authcore/records"
	"github.com/quorali/authcore/refresh"
	"github.com/quorali/authcore/session"
	"github.com/quorali/authcore/token"
)

// Core holds the wired services of the identity core.
type Core struct {
	Config     *config.Config
	Records    *records.Client
	Keys       *keys.Directory
	Tokens     *token.Service
	Refresh    *refresh.Lifecycle
	Sessions   *session.Service
	Clients    *session.ClientValidator
	Providers  *federation.Registry
	Federation *federation.Service

	memCache *cache.MemoryStore
}

// New wires the core from configuration. The context bounds startup work such
// as hosted-provider discovery.
func New(ctx context.Context, cfg *config.Config) (*Core, error) {
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	store, err := records.NewClient(records.Config{
		Address:   cfg.RecordStoreURL,
		Secret:    cfg.RecordStoreSecret,
		ServiceID: cfg.ServiceID,
		Timeout:   cfg.RecordStoreTimeout,
	})
	if err != nil {
		return nil, err
	}

	core := &Core{Config: cfg, Records: store}

	var shortLived cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		shortLived = cache.NewRedisStore(client, cfg.ServiceID)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis for the short-lived cache")
	} else {
		core.memCache = cache.NewMemoryStore()
		shortLived = core.memCache
	}

	core.Keys = keys.NewDirectory(store, cfg.ActiveKeyCacheTTL, shortLived)
	core.Tokens = token.NewService(core.Keys, token.Config{
		Issuer:         cfg.IssuerURL,
		Audience:       cfg.DefaultClientID,
		AccessTokenTTL: cfg.AccessTokenTTL,
		IDTokenTTL:     cfg.IDTokenTTL,
		EmailTokenTTL:  cfg.EmailTokenTTL,
	})
	core.Refresh = refresh.NewLifecycle(store, cfg.RefreshTokenTTL)

	notifier := notify.NewHTTPNotifier(cfg.NotifierURL, cfg.NotifierTimeout)
	core.Sessions = session.NewService(store, core.Tokens, core.Refresh, notifier, session.Config{
		ClientID:            cfg.DefaultClientID,
		ConfirmationBaseURL: cfg.ConfirmationBaseURL,
		AccessTokenTTL:      cfg.AccessTokenTTL,
	})
	core.Clients = session.NewClientValidator(store)

	core.Providers = federation.NewRegistry()
	if cfg.GoogleClientID != "" {
		core.Providers.Register(federation.NewGoogleProvider(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.FederationRedirectURL))
	}
	if cfg.GithubClientID != "" {
		core.Providers.Register(federation.NewGitHubProvider(
			cfg.GithubClientID, cfg.GithubClientSecret, cfg.FederationRedirectURL))
	}
	if cfg.HostedDomain != "" {
		hosted, err := federation.NewHostedProvider(ctx, federation.HostedConfig{
			Domain:             cfg.HostedDomain,
			ClientID:           cfg.HostedClientID,
			ClientSecret:       cfg.HostedClientSecret,
			RedirectURL:        cfg.HostedCallbackURL,
			ManagementAudience: cfg.HostedAudience,
		})
		if err != nil {
			core.Close()
			return nil, fmt.Errorf("authcore: configuring hosted provider: %w", err)
		}
		core.Providers.Register(hosted)
	}
	log.Info().Strs("providers", core.Providers.Names()).Msg("federation providers configured")

	core.Federation = federation.NewService(
		core.Providers,
		federation.NewSynchronizer(store),
		core.Tokens,
		core.Refresh,
		shortLived,
		federation.Config{
			ClientID:       cfg.DefaultClientID,
			StateTTL:       cfg.FederationStateTTL,
			AccessTokenTTL: cfg.AccessTokenTTL,
		},
	)

	return core, nil
}

// Close releases in-process resources. It does not touch the record store.
func (c *Core) Close() {
	if c.Keys != nil {
		c.Keys.Close()
	}
	if c.memCache != nil {
		c.memCache.Close()
	}
}
