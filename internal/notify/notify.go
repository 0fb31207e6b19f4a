package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Message is one claimant notification: a template and its variables,
// addressed to a single recipient on a single channel.
type Message struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

// Dispatcher delivers a message over one channel. Implementations are thin
// proxies to third-party communication APIs; delivery guarantees beyond the
// dispatch call are out of scope.
type Dispatcher interface {
	Channel() string
	Dispatch(ctx context.Context, msg Message) error
}

// httpDispatcher posts messages to a provider endpoint.
type httpDispatcher struct {
	channel  string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewEmailDispatcher creates the email channel.
func NewEmailDispatcher(endpoint, apiKey string, timeout time.Duration) Dispatcher {
	return newHTTPDispatcher("email", endpoint, apiKey, timeout)
}

// NewWhatsAppDispatcher creates the WhatsApp messaging channel.
func NewWhatsAppDispatcher(endpoint, apiKey string, timeout time.Duration) Dispatcher {
	return newHTTPDispatcher("whatsapp", endpoint, apiKey, timeout)
}

func newHTTPDispatcher(channel, endpoint, apiKey string, timeout time.Duration) *httpDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpDispatcher{
		channel:  channel,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *httpDispatcher) Channel() string {
	return d.channel
}

func (d *httpDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", d.channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", d.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s provider unreachable: %w", d.channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s provider returned %d", d.channel, resp.StatusCode)
	}

	return nil
}
