package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

const testSecret = "test-shared-secret"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Address:   srv.URL,
		Secret:    testSecret,
		ServiceID: "authcore-test",
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestRequestsCarryServiceCredential(t *testing.T) {
	var captured string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1"})
	}))

	_, err := client.GetUserByID(context.Background(), "user-1")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(captured, "Bearer "))
	raw := strings.TrimPrefix(captured, "Bearer ")

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.Equal(t, "authcore-test", claims.Issuer)
	assert.Equal(t, "authcore-test", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{"record-store"}, claims.Audience)
}

func TestServiceCredentialReused(t *testing.T) {
	var seen []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1"})
	}))

	for i := 0; i < 3; i++ {
		_, err := client.GetUserByID(context.Background(), "user-1")
		require.NoError(t, err)
	}

	require.Len(t, seen, 3)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], seen[2])
}

func TestGetUserByEmailNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	}))

	_, err := client.GetUserByEmail(context.Background(), "ghost@example.com")
	require.Error(t, err)
	assert.Equal(t, serrors.KindUserNotFound, serrors.KindOf(err))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"duplicate_email"}`))
	}))

	_, err := client.CreateUser(context.Background(), domain.NewUser{Email: "dup@example.com"})
	require.Error(t, err)
	assert.Equal(t, serrors.KindEmailAlreadyInUse, serrors.KindOf(err))
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1"})
	}))

	user, err := client.GetUserByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, 3, calls)
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetUserByID(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestVerifyPasswordUnknownUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	ok, err := client.VerifyPassword(context.Background(), "ghost", "secret")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeUnknownTokenIsIdempotent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	revoked, err := client.RevokeRefreshTokenByValue(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestGetActiveKeyPairAbsence(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetActiveKeyPair(context.Background())
	require.ErrorIs(t, err, ErrNoActiveKey)
}

func TestJWKSDropsPrivateMaterial(t *testing.T) {
	// A misbehaving store that publishes private components alongside the
	// public ones.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{
			"kid":"kid-1","kty":"RSA","alg":"RS256","use":"sig",
			"n":"modulus","e":"AQAB",
			"d":"private-exponent","p":"prime-one","q":"prime-two"
		}]}`))
	}))

	set, err := client.GetActiveKeyPairsAsJWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)

	reencoded, err := json.Marshal(set)
	require.NoError(t, err)
	assert.NotContains(t, string(reencoded), "private-exponent")
	assert.NotContains(t, string(reencoded), "prime-one")
	assert.Contains(t, string(reencoded), "modulus")
}

func TestUpstreamErrorKind(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.CreateRefreshToken(context.Background(), &domain.RefreshToken{Token: "abc"})
	require.Error(t, err)
	assert.Equal(t, serrors.KindUpstreamUnavailable, serrors.KindOf(err))
}
