// Package records is the client for the remote record store that owns users,
// OAuth client registrations, signing key pairs, and refresh-token records.
// Every call is authenticated with a short-lived, self-issued service
// credential and bounded by a per-call timeout. The store is the only
// durability boundary of this core.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"

	serrors "github.com/quorali/authcore/errors"
)

const (
	serviceCredentialTTL    = 2 * time.Minute
	serviceCredentialMargin = 30 * time.Second
	serviceCredentialAud    = "record-store"
)

// Config holds the record store client configuration.
type Config struct {
	// Address is the base URL of the record store, e.g. "http://records:9000".
	Address string
	// Secret signs the HS256 service credential attached to every call.
	Secret string
	// ServiceID is this service's identifier, asserted as iss/sub of the
	// service credential.
	ServiceID string
	// Timeout bounds every outbound call. Zero means 5s.
	Timeout time.Duration
}

// Client is a typed HTTP client for the record store.
type Client struct {
	base    string
	http    *http.Client
	secret  []byte
	service string
	timeout time.Duration

	mu         sync.Mutex
	cred       string
	credExpiry time.Time
}

// NewClient creates a record store client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("records: address is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("records: shared secret is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	service := cfg.ServiceID
	if service == "" {
		service = "authcore"
	}

	return &Client{
		base:    cfg.Address,
		http:    &http.Client{},
		secret:  []byte(cfg.Secret),
		service: service,
		timeout: timeout,
	}, nil
}

// serviceCredential returns a cached HS256 credential scoped to this
// service's identifier, minting a fresh one when the cached value is within
// the safety margin of its expiry.
func (c *Client) serviceCredential(now time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred != "" && now.Before(c.credExpiry.Add(-serviceCredentialMargin)) {
		return c.cred, nil
	}

	expiry := now.Add(serviceCredentialTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    c.service,
		Subject:   c.service,
		Audience:  jwt.ClaimStrings{serviceCredentialAud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("records: signing service credential: %w", err)
	}

	c.cred = signed
	c.credExpiry = expiry
	return signed, nil
}

// statusError carries a non-2xx store response through the retry layer so
// typed methods can map it to a domain kind.
type statusError struct {
	Status int
	Code   string `json:"error"`
	Detail string `json:"error_description"`
}

func (e *statusError) Error() string {
	return fmt.Sprintf("records: store returned %d (%s)", e.Status, e.Code)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

func isConflict(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusConflict
}

// do performs one request against the store. Infrastructure failures come
// back as Timeout or UpstreamUnavailable kinds; 404 and 409 surface as
// statusError for the typed methods to classify.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("records: encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("records: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	cred, err := c.serviceCredential(time.Now())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return serrors.Wrap(serrors.KindTimeout, "record store timed out", err)
		}
		return serrors.Wrap(serrors.KindUpstreamUnavailable, "record store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return serrors.Wrap(serrors.KindUpstreamUnavailable, "record store returned malformed response", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusConflict:
		se := &statusError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(se)
		return se
	default:
		se := &statusError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(se)
		return serrors.Wrap(serrors.KindUpstreamUnavailable, "record store request failed", se)
	}
}

// get performs an idempotent read, retrying transient infrastructure
// failures a couple of times before giving up.
func (c *Client) get(ctx context.Context, path string, out any) error {
	op := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !serrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx))
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}
