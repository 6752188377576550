// Package stripex wraps the stripe-go resource packages behind one client so services can
// depend on narrow interfaces and tests can swap in fakes.
package stripex

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/accountlink"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Client struct {
	webhookSecret string
	country       string
	refreshURL    string
	returnURL     string
}

type Options struct {
	SecretKey     string
	WebhookSecret string
	Country       string
	// AppURL is where Connect onboarding sends the barber back to.
	AppURL string
}

func New(opts Options) *Client {
	stripe.Key = opts.SecretKey
	return &Client{
		webhookSecret: opts.WebhookSecret,
		country:       opts.Country,
		refreshURL:    opts.AppURL + "/dashboard/payments?refresh=1",
		returnURL:     opts.AppURL + "/dashboard/payments?onboarding=done",
	}
}

type PaymentIntentInput struct {
	AmountCents    int64
	FeeCents       int64
	Currency       string
	Destination    string
	Description    string
	ReceiptEmail   string
	IdempotencyKey string
	Metadata       map[string]string
}

func (c *Client) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(in.AmountCents),
		Currency:             stripe.String(in.Currency),
		ApplicationFeeAmount: stripe.Int64(in.FeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(in.Destination),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey("pi-" + in.IdempotencyKey)
	}
	params.Context = ctx

	return paymentintent.New(params)
}

func (c *Client) CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String("abandoned"),
	}
	params.Context = ctx
	return paymentintent.Cancel(id, params)
}

type LineItem struct {
	PriceID     string
	Name        string
	AmountCents int64
	Currency    string
}

type CheckoutInput struct {
	SuccessURL        string
	CancelURL         string
	Item              LineItem
	FeeCents          int64
	Destination       string
	CustomerEmail     string
	ClientReferenceID string
	IdempotencyKey    string
	Metadata          map[string]string
}

func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*stripe.CheckoutSession, error) {
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if in.Item.PriceID != "" {
		item.Price = stripe.String(in.Item.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(in.Item.Currency),
			UnitAmount: stripe.Int64(in.Item.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(in.Item.Name),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{item},
		ClientReferenceID: stripe.String(in.ClientReferenceID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(in.FeeCents),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(in.Destination),
			},
			Metadata: in.Metadata,
		},
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey("cs-" + in.IdempotencyKey)
	}
	params.Context = ctx

	return checkoutsession.New(params)
}

func (c *Client) CreateExpressAccount(ctx context.Context, email, barberID string) (*stripe.Account, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(c.country),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("barber_id", barberID)
	params.SetIdempotencyKey("acct-" + barberID)
	params.Context = ctx

	return account.New(params)
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	return account.GetByID(accountID, params)
}

func (c *Client) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(c.refreshURL),
		ReturnURL:  stripe.String(c.returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := accountlink.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event envelope.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// ErrorCode extracts Stripe's machine-readable code for logging.
func ErrorCode(err error) string {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.Code != "" {
			return string(serr.Code)
		}
		return string(serr.Type)
	}
	return ""
}

// Describe renders a Stripe error with its request id for server-side logs.
func Describe(err error) string {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return fmt.Sprintf("stripe %s (%s) request=%s: %s", serr.Type, serr.Code, serr.RequestID, serr.Msg)
	}
	return err.Error()
}
