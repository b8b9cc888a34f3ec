package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.IDTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.EmailTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "authcore-web", cfg.DefaultClientID)
	assert.Equal(t, 5*time.Second, cfg.RecordStoreTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("ISSUER_URL", "https://id.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, "https://id.example.com", cfg.IssuerURL)
}

func TestLoad_EnvOnlyKeys(t *testing.T) {
	// Keys with no default, such as the secrets, must still be readable
	// from the environment alone.
	t.Setenv("RECORD_STORE_SECRET", "super-secret")
	t.Setenv("GOOGLE_CLIENT_ID", "google-id")
	t.Setenv("HOSTED_DOMAIN", "acme.eu.auth0.com")
	t.Setenv("REDIS_PASSWORD", "redis-pass")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "super-secret", cfg.RecordStoreSecret)
	assert.Equal(t, "google-id", cfg.GoogleClientID)
	assert.Equal(t, "acme.eu.auth0.com", cfg.HostedDomain)
	assert.Equal(t, "redis-pass", cfg.RedisPassword)
}
