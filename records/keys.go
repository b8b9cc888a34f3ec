package records

import (
	"context"
	"errors"
	"net/url"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// CreateKeyPair stores a freshly generated signing key pair.
func (c *Client) CreateKeyPair(ctx context.Context, pair *domain.KeyPair) (*domain.KeyPair, error) {
	var created domain.KeyPair
	if err := c.post(ctx, "/keys", pair, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetKeyPairByKid resolves a key pair, active or retired, by identifier.
func (c *Client) GetKeyPairByKid(ctx context.Context, kid string) (*domain.KeyPair, error) {
	var pair domain.KeyPair
	if err := c.get(ctx, "/keys/"+url.PathEscape(kid), &pair); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindTokenInvalid, "unknown signing key", err)
		}
		return nil, err
	}
	return &pair, nil
}

// ErrNoActiveKey reports that the store holds no ACTIVE signing key. The key
// directory reacts by generating one.
var ErrNoActiveKey = errors.New("records: no active signing key")

// GetActiveKeyPair fetches the single ACTIVE key pair. Absence is reported
// as ErrNoActiveKey.
func (c *Client) GetActiveKeyPair(ctx context.Context) (*domain.KeyPair, error) {
	var pair domain.KeyPair
	if err := c.get(ctx, "/keys/active", &pair); err != nil {
		if isNotFound(err) {
			return nil, ErrNoActiveKey
		}
		return nil, err
	}
	return &pair, nil
}

// GetActiveKeyPairsAsJWKS fetches the published key-set document. The
// JSONWebKey shape only carries public RSA components, so any private
// material a misbehaving store includes is dropped on decode.
func (c *Client) GetActiveKeyPairsAsJWKS(ctx context.Context) (*domain.JSONWebKeySet, error) {
	var set domain.JSONWebKeySet
	if err := c.get(ctx, "/keys/jwks", &set); err != nil {
		return nil, err
	}
	return &set, nil
}
