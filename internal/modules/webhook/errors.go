package webhook

import "errors"

var (
	ErrMissingSignature = errors.New("missing stripe-signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed event payload")

	// ErrTransferUnlinked means the transfer's charge is not on any booking yet.
	// The event fails so Stripe redelivers it after payment_intent.succeeded lands.
	ErrTransferUnlinked = errors.New("transfer source charge not linked to a booking yet")
)
