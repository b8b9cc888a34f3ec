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

func overrideGithubEndpoints(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	origInfo, origEmails := GithubUserInfoEndpoint, GithubUserEmailsEndpoint
	GithubUserInfoEndpoint = srv.URL + "/user"
	GithubUserEmailsEndpoint = srv.URL + "/user/emails"
	t.Cleanup(func() {
		GithubUserInfoEndpoint = origInfo
		GithubUserEmailsEndpoint = origEmails
	})
}

func TestGitHubFetchIdentityPrefersPrimaryVerifiedEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"login":"alice","name":"Alice Liddell","email":null,"avatar_url":"https://avatars.example.com/42"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"email":"old@example.com","primary":false,"verified":true},
			{"email":"alice@example.com","primary":true,"verified":true}
		]`))
	})
	overrideGithubEndpoints(t, mux)

	p := NewGitHubProvider("id", "secret", "https://auth.example.com/callback")
	identity, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.NoError(t, err)

	assert.Equal(t, "github", identity.Provider)
	assert.Equal(t, "42", identity.Subject)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Alice", identity.GivenName)
	assert.Equal(t, "Liddell", identity.FamilyName)
	assert.Equal(t, "https://avatars.example.com/42", identity.Picture)
}

func TestGitHubFetchIdentityFallsBackToProfileEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"login":"alice","name":"","email":"public@example.com"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	overrideGithubEndpoints(t, mux)

	p := NewGitHubProvider("id", "secret", "https://auth.example.com/callback")
	identity, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.NoError(t, err)

	assert.Equal(t, "public@example.com", identity.Email)
	assert.False(t, identity.EmailVerified)
	// With no display name the login stands in for the given name.
	assert.Equal(t, "alice", identity.GivenName)
}

func TestGitHubFetchIdentityRequiresEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"login":"alice","name":"Alice","email":null}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"email":"unverified@example.com","primary":true,"verified":false}]`))
	})
	overrideGithubEndpoints(t, mux)

	p := NewGitHubProvider("id", "secret", "https://auth.example.com/callback")
	_, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.Error(t, err)
	assert.Equal(t, serrors.KindEmailRequired, serrors.KindOf(err))
}
