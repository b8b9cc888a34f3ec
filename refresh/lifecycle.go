// Package refresh manages the lifecycle of opaque refresh tokens: issuance,
// verification, single-use rotation, and idempotent revocation. Token values
// are high-entropy random strings; all state lives in the record store.
package refresh

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

const tokenEntropyBytes = 32

// Store is the slice of the record store the lifecycle needs. Revocation is
// a single conditional mutation on the store side: the bool reports whether
// the call performed the live-to-revoked transition.
type Store interface {
	CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshTokenByValue(ctx context.Context, value string) (*domain.RefreshToken, error)
	RevokeRefreshTokenByValue(ctx context.Context, value string) (bool, error)
}

// Lifecycle issues and rotates refresh tokens.
type Lifecycle struct {
	store Store
	ttl   time.Duration
}

// NewLifecycle creates a refresh-token lifecycle. A zero ttl defaults to
// seven days.
func NewLifecycle(store Store, ttl time.Duration) *Lifecycle {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Lifecycle{store: store, ttl: ttl}
}

// Issue generates an unguessable opaque token for the user, persists it with
// its TTL, and returns the value. The value embeds no user data.
func (l *Lifecycle) Issue(ctx context.Context, userID, clientID string) (string, error) {
	value, err := newOpaqueValue()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &domain.RefreshToken{
		Token:     value,
		UserID:    userID,
		ClientID:  clientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.store.CreateRefreshToken(ctx, record); err != nil {
		return "", fmt.Errorf("refresh: storing token: %w", err)
	}
	return value, nil
}

// Verify resolves a token value to its record. Unknown values are
// InvalidRefreshToken, revoked ones TokenInvalid, expired ones TokenExpired.
func (l *Lifecycle) Verify(ctx context.Context, value string) (*domain.RefreshToken, error) {
	record, err := l.store.GetRefreshTokenByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if record.Revoked() {
		return nil, serrors.E(serrors.KindTokenInvalid, "refresh token has been revoked")
	}
	if record.Expired(time.Now()) {
		return nil, serrors.E(serrors.KindTokenExpired, "refresh token is past its expiry")
	}
	return record, nil
}

// Rotate consumes a token exactly once: it verifies the record, revokes it
// through the store's conditional mutation, and only then issues the
// replacement for the same user and client. When two callers race on one
// token the store lets a single revocation through, so the loser stops here
// with InvalidRefreshToken and never receives a second live token.
func (l *Lifecycle) Rotate(ctx context.Context, value string) (string, *domain.RefreshToken, error) {
	record, err := l.Verify(ctx, value)
	if err != nil {
		return "", nil, err
	}

	revoked, err := l.store.RevokeRefreshTokenByValue(ctx, value)
	if err != nil {
		return "", nil, err
	}
	if !revoked {
		log.Warn().Str("user_id", record.UserID).Msg("refresh token rotation lost a concurrent race")
		return "", nil, serrors.E(serrors.KindInvalidRefreshToken, "refresh token already consumed")
	}

	next, err := l.Issue(ctx, record.UserID, record.ClientID)
	if err != nil {
		return "", nil, err
	}
	return next, record, nil
}

// Revoke marks a token revoked. It is idempotent: revoking an unknown or
// already-revoked token reports false without error.
func (l *Lifecycle) Revoke(ctx context.Context, value string) (bool, error) {
	return l.store.RevokeRefreshTokenByValue(ctx, value)
}

func newOpaqueValue() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh: generating token value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
