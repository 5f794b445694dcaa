// Package slack posts messages to a Slack-compatible incoming webhook
// (Slack, Mattermost, Rocket.Chat and most chat bridges accept the same
// {"text": ...} payload).
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(n *Notifier) { n.headers = h }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.client.Timeout = d }
}

// WithBackoff sets the base retry delay, doubled per attempt. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(n *Notifier) { n.backoff = d }
}

// Notifier POSTs {"text": message} to a webhook URL. Retries on 5xx with
// exponential backoff; 4xx responses fail immediately.
type Notifier struct {
	client  *http.Client
	url     string
	headers map[string]string
	backoff time.Duration
}

// New creates a notifier targeting the given webhook URL.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type payload struct {
	Text string `json:"text"`
}

// Notify sends one message.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(payload{Text: message})
	if err != nil {
		return fmt.Errorf("slack: marshal: %w", err)
	}
	return n.postWithRetry(ctx, body)
}

// postWithRetry sends the body via HTTP POST with retry on 5xx.
func (n *Notifier) postWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(n.backoff << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("slack: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range n.headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("slack: %w", err)
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("slack: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
