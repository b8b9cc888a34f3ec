// Package token issues and verifies the signed credentials of this service:
// access tokens, identity tokens, and email-verification tokens. Signing
// keys come from the key directory; the signature algorithm is pinned and
// the key identifier travels in the token header.
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
	"github.com/quorali/authcore/keys"
)

const defaultScope = "openid profile email"

// KeyDirectory resolves signing and verification keys.
type KeyDirectory interface {
	SigningKey(ctx context.Context) (string, *rsa.PrivateKey, error)
	VerificationKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Config holds token issuance parameters.
type Config struct {
	// Issuer is this service's public URL, asserted as `iss`.
	Issuer string
	// Audience is the default front-end client id asserted as `aud` on
	// access and email-verification tokens.
	Audience string

	AccessTokenTTL time.Duration
	IDTokenTTL     time.Duration
	EmailTokenTTL  time.Duration
}

// Service signs and verifies tokens.
type Service struct {
	keys KeyDirectory
	cfg  Config
}

// NewService creates a token service. Zero TTLs get the standard defaults.
func NewService(dir KeyDirectory, cfg Config) *Service {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.IDTokenTTL <= 0 {
		cfg.IDTokenTTL = time.Hour
	}
	if cfg.EmailTokenTTL <= 0 {
		cfg.EmailTokenTTL = 24 * time.Hour
	}
	return &Service{keys: dir, cfg: cfg}
}

// IssueAccessToken signs a short-lived access token asserting the user's
// identity, roles, and scope.
func (s *Service) IssueAccessToken(ctx context.Context, user *domain.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
		Roles: user.Roles,
		Scope: defaultScope,
	}
	return s.sign(ctx, claims)
}

// IssueIDToken signs an identity token for the given relying client,
// carrying OIDC profile claims. The nonce, when present, echoes the value
// the client bound to its authorization request.
func (s *Service) IssueIDToken(ctx context.Context, user *domain.User, clientID, nonce string) (string, error) {
	now := time.Now()
	claims := IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.IDTokenTTL)),
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          user.DisplayName(),
		GivenName:     user.FirstName,
		FamilyName:    user.LastName,
		Picture:       user.Picture,
		Nonce:         nonce,
	}
	return s.sign(ctx, claims)
}

// IssueEmailVerificationToken signs the token embedded in a confirmation
// link. Its purpose claim keeps it from standing in for any other token.
func (s *Service) IssueEmailVerificationToken(ctx context.Context, user *domain.User) (string, error) {
	now := time.Now()
	claims := EmailClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.EmailTokenTTL)),
		},
		Email:   user.Email,
		Purpose: PurposeEmailVerification,
	}
	return s.sign(ctx, claims)
}

func (s *Service) sign(ctx context.Context, claims jwt.Claims) (string, error) {
	kid, key, err := s.keys.SigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("token: resolving signing key: %w", err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("token: signing: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken verifies signature, expiry, issuer, and audience of an
// access token and returns its claims. Expiry failures map to TokenExpired,
// everything else to TokenInvalid.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(ctx, raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyEmailVerificationToken verifies an email-verification token. A valid
// token of any other purpose, including an access token, is rejected with
// its own error kind.
func (s *Service) VerifyEmailVerificationToken(ctx context.Context, raw string) (*EmailClaims, error) {
	claims := &EmailClaims{}
	if err := s.verify(ctx, raw, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeEmailVerification {
		return nil, serrors.E(serrors.KindWrongPurpose, "token was not issued for email verification")
	}
	return claims, nil
}

// verify parses raw into claims. The key is resolved through the directory
// by the kid header; the algorithm is pinned to the directory's scheme
// rather than read from the header.
func (s *Service) verify(ctx context.Context, raw string, claims jwt.Claims) error {
	if raw == "" {
		return serrors.E(serrors.KindTokenRequired, "a token is required")
	}

	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token: missing kid header")
		}
		return s.keys.VerificationKey(ctx, kid)
	}

	_, err := jwt.ParseWithClaims(raw, claims, keyfunc,
		jwt.WithValidMethods([]string{keys.Algorithm}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return serrors.Wrap(serrors.KindTokenExpired, "token is past its expiry", err)
		}
		return serrors.Wrap(serrors.KindTokenInvalid, "token failed verification", err)
	}
	return nil
}
