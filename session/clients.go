package session

import (
	"context"
	"fmt"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// ClientStore is the slice of the record store the validator needs.
type ClientStore interface {
	GetClientByClientID(ctx context.Context, clientID string) (*domain.Client, error)
}

// ClientValidator checks relying-client registrations before a flow binds
// tokens to them.
type ClientValidator struct {
	clients ClientStore
}

// NewClientValidator creates a client validator.
func NewClientValidator(clients ClientStore) *ClientValidator {
	return &ClientValidator{clients: clients}
}

// ValidateAuthorization resolves the client registration and checks the
// redirect URI and requested scopes against it. The redirect URI must match a
// registered one exactly; scopes outside the registration are rejected. An
// empty scope request is allowed and inherits the registered set.
func (v *ClientValidator) ValidateAuthorization(ctx context.Context, clientID, redirectURI string, scopes []string) (*domain.Client, error) {
	client, err := v.clients.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if !client.AllowsRedirectURI(redirectURI) {
		return nil, serrors.E(serrors.KindInvalidRedirectURI,
			fmt.Sprintf("redirect URI is not registered for client %s", clientID))
	}

	registered := make(map[string]struct{}, len(client.Scopes))
	for _, s := range client.Scopes {
		registered[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := registered[s]; !ok {
			return nil, serrors.E(serrors.KindInvalidScope,
				fmt.Sprintf("scope %q is not registered for client %s", s, clientID))
		}
	}

	return client, nil
}
