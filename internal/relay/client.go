package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"medtime-companion/config"
)

// MinRecipientLength is the shortest phone number the relay accepts.
const MinRecipientLength = 10

var (
	ErrInvalidRecipient = errors.New("relay: recipient is missing or too short")
	ErrNotConfigured    = errors.New("relay: base URL or API key not configured")
)

// Message is one outgoing relay message.
type Message struct {
	Recipient string
	Text      string
	ImageURL  string
}

// Client sends messages through the third-party relay's HTTP GET endpoint.
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// NewClient creates a relay client from the relay config section.
func NewClient(cfg config.RelayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		baseURL: strings.TrimSpace(cfg.BaseURL),
		apiKey:  cfg.APIKey,
	}
}

// Configured reports whether the relay endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Send delivers msg. Only a 200 response counts as delivered.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	recipient := strings.TrimSpace(msg.Recipient)
	if len(recipient) < MinRecipientLength {
		return ErrInvalidRecipient
	}

	params := map[string]string{
		"recipient": recipient,
		"apikey":    c.apiKey,
		"text":      msg.Text,
	}
	if msg.ImageURL != "" {
		params["file"] = msg.ImageURL
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", c.redact(err))
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("relay returned status %d", resp.StatusCode())
	}
	return nil
}

// redact drops the request URL from transport errors; it carries the API key.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	if c.apiKey != "" && strings.Contains(err.Error(), c.apiKey) {
		return errors.New(strings.ReplaceAll(err.Error(), c.apiKey, "[redacted]"))
	}
	return err
}
