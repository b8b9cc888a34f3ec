// Package keys is the key directory client: it resolves the active signing
// key and historical verification keys from the record store, memoizing them
// briefly in process so rotation is picked up promptly.
package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/cache"
	"github.com/quorali/authcore/domain"
	"github.com/quorali/authcore/records"
)

const (
	activeMemoKey = "\x00active"
	jwksCacheKey  = "jwks"
	jwksCacheTTL  = 5 * time.Minute

	// Generated keys are rotated out well before this; the expiry is a
	// backstop so abandoned keys eventually stop verifying.
	generatedKeyLifetime = 90 * 24 * time.Hour
)

// Store is the slice of the record store the directory needs.
type Store interface {
	GetActiveKeyPair(ctx context.Context) (*domain.KeyPair, error)
	GetKeyPairByKid(ctx context.Context, kid string) (*domain.KeyPair, error)
	CreateKeyPair(ctx context.Context, pair *domain.KeyPair) (*domain.KeyPair, error)
	GetActiveKeyPairsAsJWKS(ctx context.Context) (*domain.JSONWebKeySet, error)
}

// Directory caches signing keys resolved from the record store.
type Directory struct {
	store Store
	memo  *ttlcache.Cache[string, *domain.KeyPair]
	docs  cache.Store
}

// NewDirectory creates a key directory. activeTTL bounds how stale the
// memoized active key may get after an out-of-band rotation. docs, if
// non-nil, caches the published key-set document; it is optional and only an
// optimization.
func NewDirectory(store Store, activeTTL time.Duration, docs cache.Store) *Directory {
	if activeTTL <= 0 {
		activeTTL = time.Minute
	}
	memo := ttlcache.New(
		ttlcache.WithTTL[string, *domain.KeyPair](activeTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.KeyPair](),
	)
	go memo.Start()

	return &Directory{store: store, memo: memo, docs: docs}
}

// ActiveKey returns the single ACTIVE key pair, generating one lazily when
// the store holds none.
func (d *Directory) ActiveKey(ctx context.Context) (*domain.KeyPair, error) {
	if item := d.memo.Get(activeMemoKey); item != nil {
		return item.Value(), nil
	}

	pair, err := d.store.GetActiveKeyPair(ctx)
	if errors.Is(err, records.ErrNoActiveKey) {
		pair, err = d.generateActiveKey(ctx)
	}
	if err != nil {
		return nil, err
	}

	d.memo.Set(activeMemoKey, pair, ttlcache.DefaultTTL)
	d.memo.Set(pair.Kid, pair, ttlcache.DefaultTTL)
	return pair, nil
}

// ResolveKey resolves a key pair by identifier. Retired keys stay resolvable
// so tokens signed before a rotation keep verifying.
func (d *Directory) ResolveKey(ctx context.Context, kid string) (*domain.KeyPair, error) {
	if item := d.memo.Get(kid); item != nil {
		return item.Value(), nil
	}

	pair, err := d.store.GetKeyPairByKid(ctx, kid)
	if err != nil {
		return nil, err
	}

	d.memo.Set(kid, pair, ttlcache.DefaultTTL)
	return pair, nil
}

// Invalidate drops the memoized active key, forcing the next signer to see a
// rotation immediately.
func (d *Directory) Invalidate() {
	d.memo.Delete(activeMemoKey)
}

// SigningKey returns the active key identifier and its parsed private key.
func (d *Directory) SigningKey(ctx context.Context) (string, *rsa.PrivateKey, error) {
	pair, err := d.ActiveKey(ctx)
	if err != nil {
		return "", nil, err
	}
	key, err := ParsePrivateKeyPEM(pair.PrivateKeyPEM)
	if err != nil {
		return "", nil, fmt.Errorf("keys: active key %s: %w", pair.Kid, err)
	}
	return pair.Kid, key, nil
}

// VerificationKey resolves the public key for a key identifier.
func (d *Directory) VerificationKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	pair, err := d.ResolveKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyPEM(pair.PublicKeyPEM)
}

// JWKS returns the published key-set document. The document carries public
// material only; the short-lived cache is consulted first and any cache
// failure degrades to a store fetch. When the store cannot serve the document
// the active key is published on its own, so verifiers keep working through a
// store outage at the cost of retired keys.
func (d *Directory) JWKS(ctx context.Context) (*domain.JSONWebKeySet, error) {
	if d.docs != nil {
		if raw, ok, err := d.docs.Get(ctx, jwksCacheKey); err == nil && ok {
			var set domain.JSONWebKeySet
			if err := json.Unmarshal([]byte(raw), &set); err == nil {
				return &set, nil
			}
		}
	}

	set, err := d.store.GetActiveKeyPairsAsJWKS(ctx)
	if err != nil {
		pair, keyErr := d.ActiveKey(ctx)
		if keyErr != nil {
			return nil, err
		}
		log.Warn().Err(err).Msg("key-set fetch failed, publishing active key only")
		set, err = BuildJWKS([]*domain.KeyPair{pair})
		if err != nil {
			return nil, err
		}
	}

	if d.docs != nil {
		if raw, err := json.Marshal(set); err == nil {
			if err := d.docs.Set(ctx, jwksCacheKey, string(raw), jwksCacheTTL); err != nil {
				log.Warn().Err(err).Msg("failed to cache key-set document")
			}
		}
	}
	return set, nil
}

// generateActiveKey creates and stores a fresh RSA key pair. It runs only
// when the store has no active key, e.g. on first boot before the setup
// tooling has provisioned one.
func (d *Directory) generateActiveKey(ctx context.Context) (*domain.KeyPair, error) {
	key, err := GenerateRSAKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generating key pair: %w", err)
	}

	privPEM, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return nil, err
	}
	pubPEM, err := EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pair := &domain.KeyPair{
		Kid:           uuid.NewString(),
		Algorithm:     Algorithm,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
		Status:        domain.KeyStatusActive,
		IssuedAt:      now,
		ExpiresAt:     now.Add(generatedKeyLifetime),
	}

	created, err := d.store.CreateKeyPair(ctx, pair)
	if err != nil {
		// Another replica may have won the race; the store keeps a single
		// active key, so fall back to reading it.
		if existing, getErr := d.store.GetActiveKeyPair(ctx); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	log.Info().Str("kid", created.Kid).Msg("generated new active signing key")
	return created, nil
}

// Close stops the memo cleanup goroutine.
func (d *Directory) Close() {
	d.memo.Stop()
}
