// Package resendx wraps the Resend client for transactional email and its svix-signed webhooks.
package resendx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/resend/resend-go/v2"
	svix "github.com/svix/svix-webhooks/go"
)

type Client struct {
	api  *resend.Client
	from string
}

func New(apiKey, from string) *Client {
	return &Client{api: resend.NewClient(apiKey), from: from}
}

// SendEmail hands one HTML email to Resend and returns the email id.
func (c *Client) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	resp, err := c.api.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return "", errors.New("resend: response without email id")
	}
	return resp.Id, nil
}

// WebhookVerifier checks the svix-id, svix-timestamp and svix-signature headers.
type WebhookVerifier struct {
	wh *svix.Webhook
}

// NewWebhookVerifier accepts the "whsec_..." signing secret from the Resend dashboard.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("resend webhook secret: %w", err)
	}
	return &WebhookVerifier{wh: wh}, nil
}

func (v *WebhookVerifier) Verify(payload []byte, headers http.Header) error {
	return v.wh.Verify(payload, headers)
}

// Event is the subset of a Resend webhook body we act on.
type Event struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string   `json:"email_id"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	} `json:"data"`
}
