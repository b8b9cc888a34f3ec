package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorali/authcore/cache"
	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// TokenIssuer is the slice of the token service the orchestrator needs.
type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, user *domain.User) (string, error)
	IssueIDToken(ctx context.Context, user *domain.User, clientID, nonce string) (string, error)
}

// RefreshTokens is the slice of the refresh lifecycle the orchestrator needs.
type RefreshTokens interface {
	Issue(ctx context.Context, userID, clientID string) (string, error)
}

// Config holds federation orchestrator parameters.
type Config struct {
	// ClientID is the first-party client bound to federated sessions.
	ClientID string
	// StateTTL bounds how long a started flow stays redeemable.
	StateTTL time.Duration
	// AccessTokenTTL is echoed to callers as expires_in.
	AccessTokenTTL time.Duration
}

// Service drives the federated login flow end to end: it hands out
// authorization URLs with single-use state and turns provider callbacks into
// local sessions.
type Service struct {
	registry *Registry
	sync     *Synchronizer
	tokens   TokenIssuer
	refresh  RefreshTokens
	states   cache.Store
	cfg      Config
}

// NewService creates a federation orchestrator.
func NewService(registry *Registry, sync *Synchronizer, tokens TokenIssuer, refresh RefreshTokens, states cache.Store, cfg Config) *Service {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	return &Service{
		registry: registry,
		sync:     sync,
		tokens:   tokens,
		refresh:  refresh,
		states:   states,
		cfg:      cfg,
	}
}

// AuthorizationURL starts a flow against the named provider. The state is
// generated server side and recorded for single use, so the callback can
// reject values it never handed out.
func (s *Service) AuthorizationURL(ctx context.Context, provider string) (string, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}

	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := s.states.Set(ctx, stateKey(state), provider, s.cfg.StateTTL); err != nil {
		return "", serrors.Wrap(serrors.KindInternal, "failed to record flow state", err)
	}

	return p.AuthCodeURL(state), nil
}

// CallbackInput carries the query parameters the provider redirected back with.
type CallbackInput struct {
	State            string
	Code             string
	ErrorCode        string
	ErrorDescription string
}

// HandleCallback completes a federated login: it consumes the state, trades
// the code for provider tokens, resolves the identity, synchronizes the local
// account, and issues local tokens. Provider tokens are discarded afterwards.
func (s *Service) HandleCallback(ctx context.Context, provider string, in CallbackInput) (*domain.User, *domain.TokenPair, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	if in.ErrorCode != "" {
		return nil, nil, serrors.E(serrors.KindOAuthError,
			fmt.Sprintf("provider returned %s: %s", in.ErrorCode, in.ErrorDescription))
	}
	if in.Code == "" {
		return nil, nil, serrors.E(serrors.KindMissingAuthCode, "callback carries no authorization code")
	}

	if err := s.consumeState(ctx, in.State, provider); err != nil {
		return nil, nil, err
	}

	tok, err := p.Exchange(ctx, in.Code)
	if err != nil {
		return nil, nil, err
	}

	identity, err := p.FetchIdentity(ctx, tok)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.sync.Synchronize(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	if !user.Active {
		log.Warn().Str("user_id", user.ID).Str("provider", provider).Msg("federated login on deactivated account")
		return nil, nil, serrors.E(serrors.KindUnauthorized, "account is deactivated")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// consumeState validates and burns the state value. The recorded value also
// pins the provider the flow was started against, so a state handed out for
// one provider cannot complete another's callback.
func (s *Service) consumeState(ctx context.Context, state, provider string) error {
	if state == "" {
		return serrors.E(serrors.KindOAuthError, "callback carries no state")
	}

	key := stateKey(state)
	recorded, ok, err := s.states.Get(ctx, key)
	if err != nil {
		return serrors.Wrap(serrors.KindInternal, "failed to read flow state", err)
	}
	if !ok || recorded != provider {
		return serrors.E(serrors.KindOAuthError, "state is unknown or expired")
	}

	if err := s.states.Delete(ctx, key); err != nil {
		return serrors.Wrap(serrors.KindInternal, "failed to consume flow state", err)
	}
	return nil
}

func (s *Service) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(ctx, user)
	if err != nil {
		return nil, err
	}
	idToken, err := s.tokens.IssueIDToken(ctx, user, s.cfg.ClientID, "")
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
		IDToken:      idToken,
	}, nil
}

func stateKey(state string) string {
	return "federation:state:" + state
}
