// Package federation adapts external identity providers to local accounts.
// Generic OAuth2 providers and the hosted identity platform all converge on
// the same post-condition: a local user exists, its profile fields are
// refreshed, and local tokens are issued. Provider tokens never leave this
// package as authentication material.
package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// Provider is one external identity provider. Implementations hide every
// provider-specific quirk behind the normalized FederatedIdentity shape.
type Provider interface {
	// Name returns the unique provider key, e.g. "google".
	Name() string

	// AuthCodeURL builds the provider authorization URL carrying the CSRF
	// state and the provider's declared scopes.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the provider's token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchIdentity retrieves the user's profile from the provider and
	// normalizes it. An identity without a usable email fails with
	// EmailRequired.
	FetchIdentity(ctx context.Context, tok *oauth2.Token) (*domain.FederatedIdentity, error)
}

// Registry is the closed set of configured providers, keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering the same name twice replaces it.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get resolves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, serrors.E(serrors.KindProviderNotConfigured, fmt.Sprintf("provider %q is not configured", name))
	}
	return p, nil
}

// Names lists the configured provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// newState generates an unguessable single-use state value.
func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("federation: generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
