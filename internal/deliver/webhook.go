package deliver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"newshound/internal/config"
	"newshound/internal/services"
)

const maxDigestRunes = 30000

// Sender posts digest cards to the configured webhook.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}

// WebhookSender delivers interactive markdown cards over HTTP. When a
// secret is configured, each request carries a timestamp and an
// HMAC-SHA256 signature derived from it.
type WebhookSender struct {
	cfg        config.Delivery
	httpClient *http.Client
	now        func() time.Time
}

// WebhookOption customizes sender construction.
type WebhookOption func(*WebhookSender)

// WithWebhookHTTPClient overrides the HTTP client (useful for tests).
func WithWebhookHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithWebhookClock overrides the signing clock (useful for tests).
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(s *WebhookSender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWebhookSender constructs a sender from the delivery configuration.
func NewWebhookSender(cfg config.Delivery, opts ...WebhookOption) *WebhookSender {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sender := &WebhookSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(sender)
	}
	return sender
}

// Configured reports whether the sender has a webhook URL.
func (s *WebhookSender) Configured() bool {
	return s.cfg.WebhookURL != ""
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardElement struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardBody struct {
	Config   map[string]bool `json:"config"`
	Header   cardHeader      `json:"header"`
	Elements []cardElement   `json:"elements"`
}

type webhookPayload struct {
	Timestamp string   `json:"timestamp,omitempty"`
	Sign      string   `json:"sign,omitempty"`
	MsgType   string   `json:"msg_type"`
	Card      cardBody `json:"card"`
}

type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send posts one markdown card. The body is truncated to the webhook's
// message size limit before sending.
func (s *WebhookSender) Send(ctx context.Context, title, body string) error {
	if !s.Configured() {
		return services.Wrap(services.ErrConfiguration, "deliver", "send", "webhook URL is not configured", nil)
	}

	payload := webhookPayload{
		MsgType: "interactive",
		Card: cardBody{
			Config: map[string]bool{"wide_screen_mode": true},
			Header: cardHeader{
				Title:    cardText{Tag: "plain_text", Content: title},
				Template: "blue",
			},
			Elements: []cardElement{{Tag: "markdown", Content: truncateRunes(body, maxDigestRunes)}},
		},
	}
	if s.cfg.WebhookSecret != "" {
		timestamp := strconv.FormatInt(s.now().Unix(), 10)
		payload.Timestamp = timestamp
		payload.Sign = sign(timestamp, s.cfg.WebhookSecret)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "deliver", "send", "webhook request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		return services.Wrap(services.ErrTransient, "deliver", "send", msg, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded webhookResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Some webhook backends answer 200 with an empty or non-JSON
		// body; treat that as accepted.
		return nil
	}
	if decoded.Code != 0 {
		return fmt.Errorf("webhook rejected message: code %d msg %q", decoded.Code, decoded.Msg)
	}
	return nil
}

// sign computes the webhook signature: the timestamp and secret form the
// HMAC key and the signed message is empty.
func sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(timestamp+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
