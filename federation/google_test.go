package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	serrors "github.com/quorali/authcore/errors"
)

func overrideGoogleEndpoint(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := GoogleUserInfoEndpoint
	GoogleUserInfoEndpoint = srv.URL
	t.Cleanup(func() { GoogleUserInfoEndpoint = orig })
}

func TestGoogleFetchIdentity(t *testing.T) {
	overrideGoogleEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"sub":"google-123",
			"given_name":"Alice","family_name":"Liddell",
			"picture":"https://lh3.example.com/alice",
			"email":"alice@example.com","email_verified":true
		}`))
	})

	p := NewGoogleProvider("id", "secret", "https://auth.example.com/callback")
	identity, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.NoError(t, err)

	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "google-123", identity.Subject)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Alice", identity.GivenName)
}

func TestGoogleFetchIdentityRequiresEmail(t *testing.T) {
	overrideGoogleEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sub":"google-123","given_name":"Alice"}`))
	})

	p := NewGoogleProvider("id", "secret", "https://auth.example.com/callback")
	_, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.Error(t, err)
	assert.Equal(t, serrors.KindEmailRequired, serrors.KindOf(err))
}

func TestGoogleFetchIdentityRejectedUpstream(t *testing.T) {
	overrideGoogleEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	p := NewGoogleProvider("id", "secret", "https://auth.example.com/callback")
	_, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.Error(t, err)
	assert.Equal(t, serrors.KindOAuthError, serrors.KindOf(err))
}
