// Package session orchestrates credential sessions: registration, password
// login, refresh exchange, logout, email verification, and the "who am I"
// projection. It composes the token service and the refresh-token lifecycle
// on top of the record store.
package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
	"github.com/quorali/authcore/notify"
	"github.com/quorali/authcore/token"
)

// UserStore is the slice of the record store this orchestrator needs.
type UserStore interface {
	CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
}

// TokenIssuer is the slice of the token service this orchestrator needs.
type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, user *domain.User) (string, error)
	IssueEmailVerificationToken(ctx context.Context, user *domain.User) (string, error)
	VerifyEmailVerificationToken(ctx context.Context, raw string) (*token.EmailClaims, error)
}

// RefreshTokens is the slice of the refresh lifecycle this orchestrator needs.
type RefreshTokens interface {
	Issue(ctx context.Context, userID, clientID string) (string, error)
	Rotate(ctx context.Context, value string) (string, *domain.RefreshToken, error)
	Revoke(ctx context.Context, value string) (bool, error)
}

// Config holds orchestrator parameters.
type Config struct {
	// ClientID is the first-party client bound to password sessions.
	ClientID string
	// ConfirmationBaseURL is the front-end page confirmation links point at.
	ConfirmationBaseURL string
	// AccessTokenTTL is echoed to callers as expires_in.
	AccessTokenTTL time.Duration
}

// Service is the credential session orchestrator.
type Service struct {
	users    UserStore
	tokens   TokenIssuer
	refresh  RefreshTokens
	notifier notify.Notifier
	cfg      Config
}

// NewService creates a session orchestrator.
func NewService(users UserStore, tokens TokenIssuer, refresh RefreshTokens, notifier notify.Notifier, cfg Config) *Service {
	return &Service{users: users, tokens: tokens, refresh: refresh, notifier: notifier, cfg: cfg}
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a user and dispatches the confirmation email. The email
// is fire and forget: a dispatch failure is logged and the registration
// still succeeds. The returned user carries no credential material.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := s.users.CreateUser(ctx, domain.NewUser{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Roles:     []string{"user"},
	})
	if err != nil {
		return nil, err
	}

	s.dispatchConfirmation(ctx, user)
	return user, nil
}

// dispatchConfirmation issues an email-verification token and hands the
// confirmation link to the notifier. Every failure is absorbed here.
func (s *Service) dispatchConfirmation(ctx context.Context, user *domain.User) {
	verification, err := s.tokens.IssueEmailVerificationToken(ctx, user)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to issue email-verification token")
		return
	}

	link := fmt.Sprintf("%s?token=%s", s.cfg.ConfirmationBaseURL, url.QueryEscape(verification))
	if err := s.notifier.SendConfirmationEmail(ctx, user.Email, user.DisplayName(), link); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to dispatch confirmation email")
	}
}

// Login checks the password against the record store and, on success, issues
// an access token and a refresh token. An unknown email and a wrong password
// return the identical error so callers cannot probe which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	invalid := serrors.E(serrors.KindInvalidCredentials, "invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if serrors.IsKind(err, serrors.KindUserNotFound) {
			return nil, nil, invalid
		}
		return nil, nil, err
	}

	ok, err := s.users.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, invalid
	}

	if !user.Active {
		log.Warn().Str("user_id", user.ID).Msg("login attempt on deactivated account")
		return nil, nil, serrors.E(serrors.KindUnauthorized, "account is deactivated")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the presented refresh token and issues a fresh access
// token for its owner. A missing or deactivated owner is Unauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	next, record, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if serrors.IsKind(err, serrors.KindUserNotFound) {
			return nil, serrors.E(serrors.KindUnauthorized, "account no longer exists")
		}
		return nil, err
	}
	if !user.Active {
		return nil, serrors.E(serrors.KindUnauthorized, "account is deactivated")
	}

	access, err := s.tokens.IssueAccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: next,
	}, nil
}

// RevocationResult is the structured outcome of a logout.
type RevocationResult struct {
	Revoked bool `json:"revoked"`
}

// RevokeSession revokes the presented refresh token. It never fails the
// caller: an unknown or already-revoked token reports Revoked=false, and
// infrastructure errors are logged and absorbed the same way.
func (s *Service) RevokeSession(ctx context.Context, refreshToken string) RevocationResult {
	revoked, err := s.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token revocation failed")
		return RevocationResult{Revoked: false}
	}
	return RevocationResult{Revoked: revoked}
}

// VerifyEmailResult reports the outcome of a confirmation-link click.
type VerifyEmailResult struct {
	User            *domain.User
	AlreadyVerified bool
}

// VerifyEmail validates an email-verification token and flips the user's
// verified flag. A second click on the same link is an informational no-op.
func (s *Service) VerifyEmail(ctx context.Context, raw string) (*VerifyEmailResult, error) {
	claims, err := s.tokens.VerifyEmailVerificationToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	if user.EmailVerified {
		return &VerifyEmailResult{User: user, AlreadyVerified: true}, nil
	}

	user.EmailVerified = true
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	// Data-processing entry for the consent audit trail.
	log.Info().
		Str("event", "data_processing").
		Str("action", "email_verified").
		Str("user_id", updated.ID).
		Msg("user email verified")

	return &VerifyEmailResult{User: updated}, nil
}

// UserInfo projects the stored user into the standard identity-claims shape.
func (s *Service) UserInfo(ctx context.Context, userID string) (*domain.UserInfo, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.UserInfo{
		Subject:       user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          user.DisplayName(),
		GivenName:     user.FirstName,
		FamilyName:    user.LastName,
		Picture:       user.Picture,
		UpdatedAt:     user.UpdatedAt.Unix(),
	}, nil
}

func (s *Service) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(ctx, user)
	if err != nil {
		return nil, err
	}
	refreshValue, err := s.refresh.Issue(ctx, user.ID, s.cfg.ClientID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refreshValue,
	}, nil
}
