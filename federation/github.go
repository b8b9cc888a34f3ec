package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/quorali/authcore/domain"
	serrors "github.com/quorali/authcore/errors"
)

// Endpoint variables so tests can point them at a local server.
var (
	GithubUserInfoEndpoint   = "https://api.github.com/user"
	GithubUserEmailsEndpoint = "https://api.github.com/user/emails"
)

// GitHubProvider implements Provider for GitHub. GitHub is OAuth2 but not
// OIDC: the profile email may be private, so a second call against the
// emails endpoint is needed to find a verified address.
type GitHubProvider struct {
	cfg *oauth2.Config
}

// NewGitHubProvider creates a GitHub provider with the read:user and
// user:email scopes.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     githuboauth.Endpoint,
		},
	}
}

func (g *GitHubProvider) Name() string { return "github" }

func (g *GitHubProvider) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindOAuthError, "github code exchange failed", err)
	}
	return tok, nil
}

// FetchIdentity fetches the profile and the email list, preferring the
// primary verified address, then any verified one, then the public profile
// email. No address at all is a hard failure.
func (g *GitHubProvider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*domain.FederatedIdentity, error) {
	client := g.cfg.Client(ctx, tok)

	resp, err := client.Get(GithubUserInfoEndpoint)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindOAuthError, "failed to fetch github user info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, serrors.Wrap(serrors.KindOAuthError, "github user info request rejected",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var info struct {
		ID        json.Number `json:"id"`
		Login     string      `json:"login"`
		Name      string      `json:"name"`
		Email     string      `json:"email"`
		AvatarURL string      `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, serrors.Wrap(serrors.KindOAuthError, "github user info response malformed", err)
	}

	email, verified := g.resolveEmail(ctx, client, info.Email)
	if email == "" {
		return nil, serrors.E(serrors.KindEmailRequired, "github account has no usable email")
	}

	given, family := splitName(info.Name)
	if given == "" {
		given = info.Login
	}

	return &domain.FederatedIdentity{
		Provider:      g.Name(),
		Subject:       info.ID.String(),
		Email:         email,
		EmailVerified: verified,
		GivenName:     given,
		FamilyName:    family,
		Picture:       info.AvatarURL,
	}, nil
}

// resolveEmail consults the emails endpoint for a verified address. Failures
// here degrade to the public profile email rather than failing the login.
func (g *GitHubProvider) resolveEmail(ctx context.Context, client *http.Client, profileEmail string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GithubUserEmailsEndpoint, nil)
	if err != nil {
		return profileEmail, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return profileEmail, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profileEmail, false
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return profileEmail, false
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	return profileEmail, false
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

var _ Provider = (*GitHubProvider)(nil)
