// Package twiliox wraps the Twilio REST client for outbound SMS and status callbacks.
package twiliox

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Options struct {
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	// StatusCallbackURL receives delivery reports; empty disables callbacks.
	StatusCallbackURL string
}

type Client struct {
	rest      *twilio.RestClient
	validator twclient.RequestValidator
	opts      Options
}

func New(opts Options) *Client {
	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: opts.AccountSID,
			Password: opts.AuthToken,
		}),
		validator: twclient.NewRequestValidator(opts.AuthToken),
		opts:      opts,
	}
}

// SendSMS queues a message through the messaging service and returns the message SID.
// The Twilio client has no context support, so ctx is only checked before the call.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetMessagingServiceSid(c.opts.MessagingServiceSID)
	params.SetBody(body)
	if c.opts.StatusCallbackURL != "" {
		params.SetStatusCallback(c.opts.StatusCallbackURL)
	}

	resp, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		return "", describe(err)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio: response without message sid")
	}
	return *resp.Sid, nil
}

// Validate checks an X-Twilio-Signature header against the callback URL and form params.
func (c *Client) Validate(url string, params map[string]string, signature string) bool {
	return c.validator.Validate(url, params, signature)
}

func describe(err error) error {
	var terr *twclient.TwilioRestError
	if errors.As(err, &terr) {
		return fmt.Errorf("twilio %d: %s", terr.Code, terr.Message)
	}
	return fmt.Errorf("twilio: %w", err)
}
