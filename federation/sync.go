package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// UserStore is the slice of the record store the synchronizer needs.
type UserStore interface {
	CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
}

// Synchronizer maps normalized provider identities onto local accounts,
// keyed by email.
type Synchronizer struct {
	users UserStore
}

// NewSynchronizer creates an identity synchronizer.
func NewSynchronizer(users UserStore) *Synchronizer {
	return &Synchronizer{users: users}
}

// Synchronize provisions or refreshes the local account for the identity.
// A new account gets a random throwaway password so it never matches any
// password login. On an existing account only the mutable profile fields
// are refreshed, and the verified flag only ever upgrades.
func (s *Synchronizer) Synchronize(ctx context.Context, identity *domain.FederatedIdentity) (*domain.User, error) {
	if identity.Email == "" {
		return nil, serrors.E(serrors.KindEmailRequired, "federated identity has no email")
	}

	user, err := s.users.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		if serrors.IsKind(err, serrors.KindUserNotFound) {
			return s.provision(ctx, identity)
		}
		return nil, err
	}

	user.FirstName = identity.GivenName
	user.LastName = identity.FamilyName
	user.Picture = identity.Picture
	if identity.EmailVerified {
		user.EmailVerified = true
	}

	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("provider", identity.Provider).
		Str("user_id", updated.ID).
		Msg("federated identity synchronized")
	return updated, nil
}

func (s *Synchronizer) provision(ctx context.Context, identity *domain.FederatedIdentity) (*domain.User, error) {
	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, domain.NewUser{
		Email:         identity.Email,
		Password:      password,
		FirstName:     identity.GivenName,
		LastName:      identity.FamilyName,
		Picture:       identity.Picture,
		EmailVerified: identity.EmailVerified,
		Roles:         []string{"user"},
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", identity.Provider).
		Str("user_id", user.ID).
		Msg("provisioned user from federated identity")
	return user, nil
}

// randomPassword generates credential filler that can never be presented on
// a password login. It is hashed by the record store like any other password.
func randomPassword() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("federation: generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
