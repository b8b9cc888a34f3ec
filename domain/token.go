package domain

import "time"

// RefreshToken is the stored record behind an opaque refresh token value.
// The value itself carries no user data; it is meaningless without the store.
type RefreshToken struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	ClientID  string     `json:"client_id,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token has been explicitly revoked or consumed
// by rotation.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPair is what a successful authentication event returns to the caller:
// a signed access token and the opaque refresh token that replaces it later.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token,omitempty"`
}
