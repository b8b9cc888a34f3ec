package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// managementTokenMargin is how long before its expiry a cached management
// credential is considered stale and refreshed.
const managementTokenMargin = time.Minute

// HostedConfig configures the hosted identity platform provider.
type HostedConfig struct {
	// Domain is the tenant domain, e.g. "acme.eu.auth0.com". The issuer
	// and every endpoint derive from it.
	Domain       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// ManagementAudience is the audience of the management API, requested
	// on the client-credentials grant.
	ManagementAudience string
}

// HostedProvider implements Provider for the hosted identity platform. Token
// verification runs against the platform's own published key set and issuer,
// independently of this service's key directory.
type HostedProvider struct {
	cfg      HostedConfig
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	mgmt     *ManagementClient
}

// NewHostedProvider discovers the platform's endpoints and key set. The
// context bounds the discovery request.
func NewHostedProvider(ctx context.Context, cfg HostedConfig) (*HostedProvider, error) {
	issuer := "https://" + cfg.Domain + "/"
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindUpstreamUnavailable, "identity platform discovery failed", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}

	return &HostedProvider{
		cfg:      cfg,
		oauth:    oauthCfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		mgmt:     NewManagementClient(issuer, cfg),
	}, nil
}

func (h *HostedProvider) Name() string { return "auth0" }

func (h *HostedProvider) AuthCodeURL(state string) string {
	return h.oauth.AuthCodeURL(state)
}

func (h *HostedProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindOAuthError, "identity platform code exchange failed", err)
	}
	return tok, nil
}

// FetchIdentity verifies the platform's identity token against its published
// key set and expected issuer/audience, then normalizes the claims. When the
// token omits the email, the management API is consulted before giving up.
func (h *HostedProvider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*domain.FederatedIdentity, error) {
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, serrors.E(serrors.KindTokenInvalid, "identity platform returned no identity token")
	}

	idToken, err := h.verifier.Verify(ctx, rawID)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, serrors.Wrap(serrors.KindTokenExpired, "identity platform token is past its expiry", err)
		}
		return nil, serrors.Wrap(serrors.KindTokenInvalid, "identity platform token failed verification", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, serrors.Wrap(serrors.KindTokenInvalid, "identity platform token claims malformed", err)
	}

	identity := &domain.FederatedIdentity{
		Provider:      h.Name(),
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
	}

	if identity.Email == "" {
		profile, err := h.mgmt.GetUser(ctx, idToken.Subject)
		if err != nil {
			return nil, err
		}
		identity.Email = profile.Email
		identity.EmailVerified = profile.EmailVerified
	}
	if identity.Email == "" {
		return nil, serrors.E(serrors.KindEmailRequired, "identity platform account has no usable email")
	}

	return identity, nil
}

// ManagementClient calls the platform's management API. Its client-
// credentials token is process-lifetime shared state: it is memoized with an
// expiry guard and refreshed under a single-flight group so concurrent
// requests trigger at most one credential exchange.
type ManagementClient struct {
	baseURL string
	creds   clientcredentials.Config
	http    *http.Client

	mu     sync.Mutex
	token  *oauth2.Token
	flight singleflight.Group
}

// NewManagementClient creates a management API client for the tenant.
func NewManagementClient(issuer string, cfg HostedConfig) *ManagementClient {
	return &ManagementClient{
		baseURL: issuer,
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     issuer + "oauth/token",
			EndpointParams: url.Values{
				"audience": {cfg.ManagementAudience},
			},
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the cached management credential, refreshing it when within
// the safety margin of its expiry.
func (m *ManagementClient) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if tok := m.token; tok != nil && time.Until(tok.Expiry) > managementTokenMargin {
		m.mu.Unlock()
		return tok.AccessToken, nil
	}
	m.mu.Unlock()

	value, err, _ := m.flight.Do("management-token", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		m.mu.Lock()
		if tok := m.token; tok != nil && time.Until(tok.Expiry) > managementTokenMargin {
			m.mu.Unlock()
			return tok.AccessToken, nil
		}
		m.mu.Unlock()

		tok, err := m.creds.Token(ctx)
		if err != nil {
			return "", serrors.Wrap(serrors.KindUpstreamUnavailable, "management credential exchange failed", err)
		}

		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// ManagedUser is the slice of the management API's user representation this
// core reads.
type ManagedUser struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// GetUser fetches a user profile from the management API.
func (m *ManagementClient) GetUser(ctx context.Context, providerUserID string) (*ManagedUser, error) {
	cred, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := m.baseURL + "api/v2/users/" + url.PathEscape(providerUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("federation: building management request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindUpstreamUnavailable, "management API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, serrors.Wrap(serrors.KindUpstreamUnavailable, "management API request failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var user ManagedUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, serrors.Wrap(serrors.KindUpstreamUnavailable, "management API response malformed", err)
	}
	return &user, nil
}

var _ Provider = (*HostedProvider)(nil)
