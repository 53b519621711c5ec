package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/canvasd/canvas"
)

// event is the webhook wire format: the event name plus the mutation
// payload as given by the caller.
type event struct {
	Event   string         `json:"event"`
	Payload canvas.Payload `json:"payload"`
}

// Webhook delivers change events as JSON POSTs to a host-application
// endpoint. When a secret is configured, each request carries an
// X-Signature-256 header with the hex HMAC-SHA256 of the body
// (GitHub-style "sha256=" prefix), so the receiver can authenticate the
// sender without any session machinery.
type Webhook struct {
	url    string
	secret string
	client *http.Client
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithSecret enables HMAC-SHA256 signing of outbound payloads.
func WithSecret(secret string) WebhookOption {
	return func(w *Webhook) { w.secret = secret }
}

// WithHTTPClient overrides the HTTP client. Test hook, also useful for
// custom timeouts.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// NewWebhook creates a webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Notify(ctx context.Context, name string, payload canvas.Payload) error {
	body, err := json.Marshal(event{Event: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write(body)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: POST %s: %w", w.url, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: %s returned %d", w.url, resp.StatusCode)
	}
	return nil
}
