package records

import (
	"context"
	"net/url"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// CreateClient registers an OAuth client.
func (c *Client) CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	var created domain.Client
	if err := c.post(ctx, "/clients", client, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetClientByClientID fetches an OAuth client registration.
func (c *Client) GetClientByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	if err := c.get(ctx, "/clients/"+url.PathEscape(clientID), &client); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindClientNotFound, "client not found", err)
		}
		return nil, err
	}
	return &client, nil
}
