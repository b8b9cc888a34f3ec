package keys

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorali/authcore/cache"
	"github.com/quorali/authcore/domain"
	"github.com/quorali/authcore/records"
)

type mockKeyStore struct {
	active  *domain.KeyPair
	byKid   map[string]*domain.KeyPair
	jwks    *domain.JSONWebKeySet
	jwksErr error

	createErr error
	// winner is installed as the active key when CreateKeyPair fails,
	// simulating a replica that won the generation race.
	winner *domain.KeyPair

	activeCalls int
	byKidCalls  int
	createCalls int
	jwksCalls   int
}

func newMockKeyStore() *mockKeyStore {
	return &mockKeyStore{byKid: make(map[string]*domain.KeyPair)}
}

func (m *mockKeyStore) GetActiveKeyPair(ctx context.Context) (*domain.KeyPair, error) {
	m.activeCalls++
	if m.active == nil {
		return nil, records.ErrNoActiveKey
	}
	return m.active, nil
}

func (m *mockKeyStore) GetKeyPairByKid(ctx context.Context, kid string) (*domain.KeyPair, error) {
	m.byKidCalls++
	pair, ok := m.byKid[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return pair, nil
}

func (m *mockKeyStore) CreateKeyPair(ctx context.Context, pair *domain.KeyPair) (*domain.KeyPair, error) {
	m.createCalls++
	if m.createErr != nil {
		m.active = m.winner
		return nil, m.createErr
	}
	m.active = pair
	m.byKid[pair.Kid] = pair
	return pair, nil
}

func (m *mockKeyStore) GetActiveKeyPairsAsJWKS(ctx context.Context) (*domain.JSONWebKeySet, error) {
	m.jwksCalls++
	if m.jwksErr != nil {
		return nil, m.jwksErr
	}
	return m.jwks, nil
}

func newStoredPair(t *testing.T, kid string, status domain.KeyStatus) *domain.KeyPair {
	t.Helper()
	key, err := GenerateRSAKey()
	require.NoError(t, err)
	privPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)
	pubPEM, err := EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)

	now := time.Now()
	return &domain.KeyPair{
		Kid:           kid,
		Algorithm:     Algorithm,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
		Status:        status,
		IssuedAt:      now,
		ExpiresAt:     now.Add(24 * time.Hour),
	}
}

func newTestDirectory(t *testing.T, store Store) *Directory {
	t.Helper()
	dir := NewDirectory(store, time.Minute, nil)
	t.Cleanup(dir.Close)
	return dir
}

func TestActiveKeyGeneratedLazily(t *testing.T) {
	store := newMockKeyStore()
	dir := newTestDirectory(t, store)

	pair, err := dir.ActiveKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, domain.KeyStatusActive, pair.Status)
	assert.Equal(t, Algorithm, pair.Algorithm)
	assert.NotEmpty(t, pair.Kid)

	// The generated key is usable for signing right away.
	key, err := ParsePrivateKeyPEM(pair.PrivateKeyPEM)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestActiveKeyMemoized(t *testing.T) {
	store := newMockKeyStore()
	store.active = newStoredPair(t, "kid-1", domain.KeyStatusActive)
	dir := newTestDirectory(t, store)

	for i := 0; i < 3; i++ {
		pair, err := dir.ActiveKey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "kid-1", pair.Kid)
	}
	assert.Equal(t, 1, store.activeCalls)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	store := newMockKeyStore()
	store.active = newStoredPair(t, "kid-1", domain.KeyStatusActive)
	dir := newTestDirectory(t, store)

	_, err := dir.ActiveKey(context.Background())
	require.NoError(t, err)

	rotated := newStoredPair(t, "kid-2", domain.KeyStatusActive)
	store.active = rotated
	dir.Invalidate()

	pair, err := dir.ActiveKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kid-2", pair.Kid)
	assert.Equal(t, 2, store.activeCalls)
}

func TestResolveRetiredKey(t *testing.T) {
	store := newMockKeyStore()
	retired := newStoredPair(t, "kid-old", domain.KeyStatusRetired)
	store.byKid["kid-old"] = retired
	dir := newTestDirectory(t, store)

	pair, err := dir.ResolveKey(context.Background(), "kid-old")
	require.NoError(t, err)
	assert.Equal(t, domain.KeyStatusRetired, pair.Status)

	pub, err := dir.VerificationKey(context.Background(), "kid-old")
	require.NoError(t, err)
	assert.NotNil(t, pub)

	// Resolved keys are memoized too.
	_, err = dir.ResolveKey(context.Background(), "kid-old")
	require.NoError(t, err)
	assert.Equal(t, 1, store.byKidCalls)
}

func TestGenerationRaceFallsBackToWinner(t *testing.T) {
	store := newMockKeyStore()
	store.createErr = errors.New("duplicate active key")
	store.winner = newStoredPair(t, "kid-winner", domain.KeyStatusActive)
	dir := newTestDirectory(t, store)

	pair, err := dir.ActiveKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kid-winner", pair.Kid)
}

func TestSigningAndVerificationKeysMatch(t *testing.T) {
	store := newMockKeyStore()
	store.active = newStoredPair(t, "kid-1", domain.KeyStatusActive)
	store.byKid["kid-1"] = store.active
	dir := newTestDirectory(t, store)

	kid, priv, err := dir.SigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kid-1", kid)

	pub, err := dir.VerificationKey(context.Background(), kid)
	require.NoError(t, err)
	assert.Equal(t, &priv.PublicKey, pub)
}

func TestJWKSCachesDocument(t *testing.T) {
	store := newMockKeyStore()
	store.jwks = &domain.JSONWebKeySet{Keys: []domain.JSONWebKey{{
		Kid: "kid-1", Kty: "RSA", Alg: Algorithm, Use: "sig", N: "abc", E: "AQAB",
	}}}

	docs := cache.NewMemoryStore()
	t.Cleanup(docs.Close)
	dir := NewDirectory(store, time.Minute, docs)
	t.Cleanup(dir.Close)

	for i := 0; i < 2; i++ {
		set, err := dir.JWKS(context.Background())
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
		assert.Equal(t, "kid-1", set.Keys[0].Kid)
	}
	assert.Equal(t, 1, store.jwksCalls)
}

func TestJWKSFallsBackToActiveKey(t *testing.T) {
	store := newMockKeyStore()
	store.active = newStoredPair(t, "kid-1", domain.KeyStatusActive)
	store.jwksErr = errors.New("store unreachable")
	dir := newTestDirectory(t, store)

	set, err := dir.JWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "kid-1", set.Keys[0].Kid)
	assert.Equal(t, "AQAB", set.Keys[0].E)
}

func TestBuildJWKSCarriesPublicMaterialOnly(t *testing.T) {
	pairs := []*domain.KeyPair{
		newStoredPair(t, "kid-1", domain.KeyStatusActive),
		newStoredPair(t, "kid-2", domain.KeyStatusRetired),
	}

	set, err := BuildJWKS(pairs)
	require.NoError(t, err)
	require.Len(t, set.Keys, 2)

	for i, key := range set.Keys {
		assert.Equal(t, pairs[i].Kid, key.Kid)
		assert.Equal(t, "RSA", key.Kty)
		assert.Equal(t, Algorithm, key.Alg)
		assert.Equal(t, "sig", key.Use)
		assert.NotEmpty(t, key.N)
		assert.Equal(t, "AQAB", key.E)
	}

	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "PRIVATE KEY")
}
