package records

import (
	"context"
	"net/url"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// CreateRefreshToken persists a refresh-token record with its TTL.
func (c *Client) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	return c.post(ctx, "/refresh-tokens", token, nil)
}

// GetRefreshTokenByValue fetches a refresh-token record. An unknown value is
// InvalidRefreshToken: the caller cannot distinguish "never issued" from
// "expired and purged", and should not.
func (c *Client) GetRefreshTokenByValue(ctx context.Context, value string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if err := c.get(ctx, "/refresh-tokens/"+url.PathEscape(value), &token); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindInvalidRefreshToken, "refresh token not recognized", err)
		}
		return nil, err
	}
	return &token, nil
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

// RevokeRefreshTokenByValue asks the store to revoke a token as a single
// conditional mutation. The returned bool is true only when THIS call
// performed the live-to-revoked transition; a concurrent rotation that lost the
// race, or a token already revoked, reports false. An unknown token also
// reports false without error, keeping revocation idempotent.
func (c *Client) RevokeRefreshTokenByValue(ctx context.Context, value string) (bool, error) {
	var out revokeResponse
	err := c.post(ctx, "/refresh-tokens/"+url.PathEscape(value)+"/revoke", nil, &out)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return out.Revoked, nil
}
