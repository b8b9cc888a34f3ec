package domain

import "time"

// Client is an OAuth client registration owned by the record store. Lookups
// happen when a relying party requests an identity token or when redirect
// URIs need validating.
type Client struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Name         string    `json:"name"`
	RedirectURIs []string  `json:"redirect_uris,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AllowsRedirectURI reports whether the given redirect URI is registered for
// the client. An empty registration list rejects everything.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
