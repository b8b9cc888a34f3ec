// Package notify is the one-way client for the notification dispatcher.
// Delivery is fire and forget: failures are logged by callers and never fail
// the originating operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier dispatches transactional notifications.
type Notifier interface {
	SendConfirmationEmail(ctx context.Context, toEmail, displayName, confirmationLink string) error
}

// HTTPNotifier posts notifications to the dispatcher service.
type HTTPNotifier struct {
	url  string
	http *http.Client
}

// NewHTTPNotifier creates a dispatcher client. A zero timeout defaults to 5s.
func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPNotifier{url: url, http: &http.Client{Timeout: timeout}}
}

type confirmationEmail struct {
	To               string `json:"to"`
	DisplayName      string `json:"display_name"`
	ConfirmationLink string `json:"confirmation_link"`
}

func (n *HTTPNotifier) SendConfirmationEmail(ctx context.Context, toEmail, displayName, confirmationLink string) error {
	payload, err := json.Marshal(confirmationEmail{
		To:               toEmail,
		DisplayName:      displayName,
		ConfirmationLink: confirmationLink,
	})
	if err != nil {
		return fmt.Errorf("notify: encoding confirmation email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url+"/emails/confirmation", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: dispatching confirmation email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: dispatcher returned %d", resp.StatusCode)
	}
	return nil
}
