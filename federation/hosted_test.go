package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManagementFixture(t *testing.T, mux *http.ServeMux) *ManagementClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewManagementClient(srv.URL+"/", HostedConfig{
		ClientID:           "mgmt-client",
		ClientSecret:       "mgmt-secret",
		ManagementAudience: "https://tenant.example.com/api/v2/",
	})
}

func TestManagementTokenCached(t *testing.T) {
	var tokenRequests int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://tenant.example.com/api/v2/", r.FormValue("audience"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"mgmt-at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mgmt-at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"user_id":"auth0|123","email":"alice@example.com","email_verified":true}`))
	})

	client := newManagementFixture(t, mux)

	for i := 0; i < 3; i++ {
		user, err := client.GetUser(context.Background(), "auth0|123")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.True(t, user.EmailVerified)
	}

	// One credential exchange serves every call until the token nears expiry.
	assert.Equal(t, 1, tokenRequests)
}

func TestManagementTokenExchangeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newManagementFixture(t, mux)

	_, err := client.GetUser(context.Background(), "auth0|123")
	require.Error(t, err)
}

func TestManagementGetUserEscapesIdentifier(t *testing.T) {
	var requestedPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"mgmt-at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"user_id":"auth0|123","email":"alice@example.com"}`))
	})

	client := newManagementFixture(t, mux)

	_, err := client.GetUser(context.Background(), "auth0|123")
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/users/auth0%7C123", requestedPath)
}
