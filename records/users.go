package records

import (
	"context"
	"net/url"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// CreateUser creates a user row. The store hashes the plaintext password; a
// duplicate email maps to EmailAlreadyInUse.
func (c *Client) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	var user domain.User
	if err := c.post(ctx, "/users", in, &user); err != nil {
		if isConflict(err) {
			return nil, serrors.Wrap(serrors.KindEmailAlreadyInUse, "a user with this email already exists", err)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail looks a user up by its exact, case-sensitive email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/users/by-email/"+url.PathEscape(email), &user); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindUserNotFound, "user not found", err)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID looks a user up by id.
func (c *Client) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/users/"+url.PathEscape(id), &user); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindUserNotFound, "user not found", err)
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser persists mutable user fields.
func (c *Client) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	var updated domain.User
	if err := c.put(ctx, "/users/"+url.PathEscape(user.ID), user, &updated); err != nil {
		if isNotFound(err) {
			return nil, serrors.Wrap(serrors.KindUserNotFound, "user not found", err)
		}
		return nil, err
	}
	return &updated, nil
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type verifyPasswordResponse struct {
	Valid bool `json:"valid"`
}

// VerifyPassword asks the store to check a plaintext password against the
// stored hash. A missing user reports false rather than an error so login
// cannot distinguish the two cases.
func (c *Client) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	var out verifyPasswordResponse
	err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/verify-password", verifyPasswordRequest{Password: password}, &out)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return out.Valid, nil
}
