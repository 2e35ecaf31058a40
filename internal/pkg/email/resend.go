package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

// ResendConfig holds Resend configuration
type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string

	// Endpoint overrides the Resend API URL.
	Endpoint string
}

// ResendClient sends emails via the Resend API
type ResendClient struct {
	config     ResendConfig
	httpClient *http.Client
}

// NewResendClient creates a new Resend email client
func NewResendClient(config ResendConfig) *ResendClient {
	if config.Endpoint == "" {
		config.Endpoint = defaultResendEndpoint
	}
	return &ResendClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EmailMessage represents an email to send
type EmailMessage struct {
	To          string
	ToName      string
	Subject     string
	HTMLContent string
	TextContent string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func address(email, name string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Send sends an email via Resend
func (c *ResendClient) Send(ctx context.Context, msg *EmailMessage) error {
	if c.config.APIKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(resendRequest{
		From:    address(c.config.FromEmail, c.config.FromName),
		To:      []string{address(msg.To, msg.ToName)},
		Subject: msg.Subject,
		HTML:    msg.HTMLContent,
		Text:    msg.TextContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr resendError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("resend returned status %d", resp.StatusCode)
	}

	return nil
}
