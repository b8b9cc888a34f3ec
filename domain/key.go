package domain

import "time"

// KeyStatus is the lifecycle state of a signing key pair. Exactly one key is
// ACTIVE at a time; retired keys stay resolvable for verification until every
// token signed with them has expired.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "ACTIVE"
	KeyStatusRetired KeyStatus = "RETIRED"
)

// KeyPair is an asymmetric signing key owned by the record store. Private
// material is PEM encoded and opaque to everything except the signer.
type KeyPair struct {
	Kid           string    `json:"kid"`
	Algorithm     string    `json:"algorithm"`
	PrivateKeyPEM string    `json:"private_key,omitempty"`
	PublicKeyPEM  string    `json:"public_key"`
	Status        KeyStatus `json:"status"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// JSONWebKey is one public key of the published key-set document. Only public
// RSA components are representable here, so private material cannot leak
// through (un)marshalling.
type JSONWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JSONWebKeySet is the JWKS document served to token verifiers.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}
