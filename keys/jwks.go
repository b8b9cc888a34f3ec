package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/quorali/authcore/domain"
)

const (
	// Algorithm is the one signing scheme this core uses. The verifier pins
	// it; the token header is never trusted to choose another.
	Algorithm = "RS256"

	rsaKeyBits = 2048
)

// GenerateRSAKey generates a new RSA private key for token signing.
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, rsaKeyBits)
}

// EncodePrivateKeyPEM encodes a private key as PKCS#8 PEM.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("keys: marshaling private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// EncodePublicKeyPEM encodes a public key as PKIX PEM.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("keys: marshaling public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePrivateKeyPEM parses a PKCS#8 or PKCS#1 PEM private key.
func ParsePrivateKeyPEM(material string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(material))
	if block == nil {
		return nil, errors.New("keys: no PEM block in private key material")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("keys: private key is not RSA")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ParsePublicKeyPEM parses a PKIX PEM public key.
func ParsePublicKeyPEM(material string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(material))
	if block == nil {
		return nil, errors.New("keys: no PEM block in public key material")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parsing public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("keys: public key is not RSA")
	}
	return rsaPub, nil
}

// BuildJWK projects a public key into the published key-set shape. Only the
// public modulus and exponent are representable, so private material cannot
// appear in the document.
func BuildJWK(kid string, pub *rsa.PublicKey) domain.JSONWebKey {
	return domain.JSONWebKey{
		Kid: kid,
		Kty: "RSA",
		Alg: Algorithm,
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// BuildJWKS builds the key-set document from stored key pairs, active and
// retired alike, using their public material only.
func BuildJWKS(pairs []*domain.KeyPair) (*domain.JSONWebKeySet, error) {
	set := &domain.JSONWebKeySet{Keys: make([]domain.JSONWebKey, 0, len(pairs))}
	for _, pair := range pairs {
		pub, err := ParsePublicKeyPEM(pair.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("keys: key %s: %w", pair.Kid, err)
		}
		set.Keys = append(set.Keys, BuildJWK(pair.Kid, pub))
	}
	return set, nil
}
