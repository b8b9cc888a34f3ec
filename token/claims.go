package token

import "github.com/golang-jwt/jwt/v5"

// PurposeEmailVerification is the purpose discriminator asserted on
// email-verification tokens so they cannot be replayed as anything else.
const PurposeEmailVerification = "email_verification"

// AccessClaims are the claims of a signed access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scope,omitempty"`
}

// IDClaims are the OpenID-Connect profile claims of an identity token issued
// to a specific relying client.
type IDClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
}

// EmailClaims are the claims of an email-verification token.
type EmailClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose"`
}
