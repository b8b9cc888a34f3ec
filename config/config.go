package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every knob of the identity core. Tags use mapstructure for
// Viper unmarshalling; values come from a config file, environment variables,
// or the defaults below, in that order of precedence.
type Config struct {
	// IssuerURL is the public URL of this service, used as the `iss` claim
	// on every token it signs.
	IssuerURL string `mapstructure:"ISSUER_URL"`
	// DefaultClientID is the audience asserted on access tokens issued to
	// the first-party front end.
	DefaultClientID string `mapstructure:"DEFAULT_CLIENT_ID"`

	AccessTokenTTL       time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	IDTokenTTL           time.Duration `mapstructure:"ID_TOKEN_TTL"`
	EmailTokenTTL        time.Duration `mapstructure:"EMAIL_TOKEN_TTL"`
	RefreshTokenTTL      time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	ActiveKeyCacheTTL    time.Duration `mapstructure:"ACTIVE_KEY_CACHE_TTL"`
	FederationStateTTL   time.Duration `mapstructure:"FEDERATION_STATE_TTL"`

	// Record store collaborator. The secret signs the short-lived service
	// credential attached to every call.
	RecordStoreURL     string        `mapstructure:"RECORD_STORE_URL"`
	RecordStoreSecret  string        `mapstructure:"RECORD_STORE_SECRET"`
	RecordStoreTimeout time.Duration `mapstructure:"RECORD_STORE_TIMEOUT"`
	ServiceID          string        `mapstructure:"SERVICE_ID"`

	// Notification dispatcher, fire and forget.
	NotifierURL     string        `mapstructure:"NOTIFIER_URL"`
	NotifierTimeout time.Duration `mapstructure:"NOTIFIER_TIMEOUT"`
	// ConfirmationBaseURL is the front-end page the confirmation link
	// points at; the email-verification token is appended as a query param.
	ConfirmationBaseURL string `mapstructure:"CONFIRMATION_BASE_URL"`

	// Optional Redis-backed short-lived cache. Empty address falls back to
	// the in-process cache; the cache is never required for correctness.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Federation providers. A provider with an empty client id is treated
	// as not configured.
	FederationRedirectURL string `mapstructure:"FEDERATION_REDIRECT_URL"`
	GoogleClientID        string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GithubClientID        string `mapstructure:"GITHUB_CLIENT_ID"`
	GithubClientSecret    string `mapstructure:"GITHUB_CLIENT_SECRET"`

	// Hosted identity platform (Auth0-style): domain, app credentials, and
	// the management API audience for the client-credentials grant.
	HostedDomain         string `mapstructure:"HOSTED_DOMAIN"`
	HostedClientID       string `mapstructure:"HOSTED_CLIENT_ID"`
	HostedClientSecret   string `mapstructure:"HOSTED_CLIENT_SECRET"`
	HostedAudience       string `mapstructure:"HOSTED_AUDIENCE"`
	HostedCallbackURL    string `mapstructure:"HOSTED_CALLBACK_URL"`
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("authcore")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authcore/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key without a default below must be bound explicitly or its
	// environment value is dropped on Unmarshal.
	for _, key := range []string{
		"RECORD_STORE_SECRET",
		"NOTIFIER_URL",
		"CONFIRMATION_BASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"FEDERATION_REDIRECT_URL",
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
		"GITHUB_CLIENT_ID",
		"GITHUB_CLIENT_SECRET",
		"HOSTED_DOMAIN",
		"HOSTED_CLIENT_ID",
		"HOSTED_CLIENT_SECRET",
		"HOSTED_AUDIENCE",
		"HOSTED_CALLBACK_URL",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding environment key %s: %w", key, err)
		}
	}

	v.SetDefault("ISSUER_URL", "http://localhost:8080")
	v.SetDefault("DEFAULT_CLIENT_ID", "authcore-web")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("ID_TOKEN_TTL", "1h")
	v.SetDefault("EMAIL_TOKEN_TTL", "24h")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("ACTIVE_KEY_CACHE_TTL", "1m")
	v.SetDefault("FEDERATION_STATE_TTL", "10m")
	v.SetDefault("RECORD_STORE_URL", "http://localhost:9000")
	v.SetDefault("RECORD_STORE_TIMEOUT", "5s")
	v.SetDefault("SERVICE_ID", "authcore")
	v.SetDefault("NOTIFIER_TIMEOUT", "5s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env vars cover it.
		// Anything else (malformed yaml, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
