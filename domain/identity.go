package domain

// FederatedIdentity is the normalized, per-request shape of a user identity
// asserted by an external provider. It is never persisted on its own; it is
// folded into a User during synchronization.
type FederatedIdentity struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}
