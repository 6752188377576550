package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
	"kutable/internal/pkg/stripex"
	"kutable/internal/repository"
)

// Service reconciles Stripe events into booking state. Every transition is a single
// conditional update, so redelivered events are harmless.
type Service struct {
	verifier        EventVerifier
	bookings        BookingRepository
	ledger          LedgerRepository
	accounts        AccountSyncer
	notifier        Notifier
	dispatchTimeout time.Duration
	log             zerolog.Logger

	inflight sync.WaitGroup
}

func NewService(verifier EventVerifier, bookings BookingRepository, ledger LedgerRepository, accounts AccountSyncer, notifier Notifier, dispatchTimeout time.Duration, log zerolog.Logger) *Service {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 15 * time.Second
	}
	return &Service{
		verifier:        verifier,
		bookings:        bookings,
		ledger:          ledger,
		accounts:        accounts,
		notifier:        notifier,
		dispatchTimeout: dispatchTimeout,
		log:             log.With().Str("component", "stripe_webhook").Logger(),
	}
}

// Handle verifies the payload signature and applies the event. A returned error other than
// a signature error means Stripe should retry.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	ev, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook signature verification failed")
		return stripe.Event{}, ErrInvalidSignature
	}
	if ev.Data == nil {
		return ev, ErrMalformedEvent
	}

	log := s.log.With().Str("event_id", ev.ID).Str("event_type", string(ev.Type)).Logger()
	switch string(ev.Type) {
	case "checkout.session.completed":
		err = s.onCheckoutCompleted(ctx, log, ev)
	case "checkout.session.expired":
		err = s.onCheckoutExpired(ctx, log, ev)
	case "payment_intent.succeeded":
		err = s.onPaymentSucceeded(ctx, log, ev)
	case "payment_intent.payment_failed":
		err = s.onPaymentFailed(ctx, log, ev)
	case "charge.dispute.created":
		err = s.onDisputeCreated(ctx, log, ev)
	case "transfer.created":
		err = s.onTransferCreated(ctx, log, ev)
	case "account.updated":
		err = s.onAccountUpdated(ctx, log, ev)
	default:
		log.Info().Msg("unhandled event type, acknowledging")
		return ev, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("webhook event processing failed")
	}
	return ev, err
}

// Wait blocks until notification dispatches started by Handle have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) onCheckoutCompleted(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := decode(ev, &sess); err != nil {
		return err
	}
	bookingID := sess.Metadata[stripex.MetaBookingID]
	if bookingID == "" {
		bookingID = sess.ClientReferenceID
	}
	refs := domain.PaymentRefs{CheckoutSessionID: sess.ID}
	if sess.PaymentIntent != nil {
		refs.PaymentIntentID = sess.PaymentIntent.ID
	}
	return s.confirm(ctx, log, bookingID, refs)
}

func (s *Service) onCheckoutExpired(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := decode(ev, &sess); err != nil {
		return err
	}
	bookingID := sess.Metadata[stripex.MetaBookingID]
	if bookingID == "" {
		bookingID = sess.ClientReferenceID
	}
	return s.cancel(ctx, log, bookingID, domain.PaymentRefs{CheckoutSessionID: sess.ID}, false)
}

func (s *Service) onPaymentSucceeded(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := decode(ev, &pi); err != nil {
		return err
	}
	bookingID, err := s.bookingForIntent(ctx, &pi)
	if err != nil {
		return err
	}
	refs := domain.PaymentRefs{PaymentIntentID: pi.ID}
	if pi.LatestCharge != nil {
		refs.ChargeID = pi.LatestCharge.ID
	}
	return s.confirm(ctx, log, bookingID, refs)
}

func (s *Service) onPaymentFailed(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := decode(ev, &pi); err != nil {
		return err
	}
	bookingID, err := s.bookingForIntent(ctx, &pi)
	if err != nil {
		return err
	}
	if pi.LastPaymentError != nil {
		log = log.With().Str("decline_code", string(pi.LastPaymentError.DeclineCode)).Str("reason", pi.LastPaymentError.Msg).Logger()
	}
	return s.cancel(ctx, log, bookingID, domain.PaymentRefs{PaymentIntentID: pi.ID}, true)
}

func (s *Service) onDisputeCreated(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var d stripe.Dispute
	if err := decode(ev, &d); err != nil {
		return err
	}
	var chargeID, piID string
	if d.Charge != nil {
		chargeID = d.Charge.ID
	}
	if d.PaymentIntent != nil {
		piID = d.PaymentIntent.ID
	}

	n, err := s.bookings.MarkRefundRequested(ctx, chargeID, piID)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn().Str("charge_id", chargeID).Str("payment_intent_id", piID).Msg("dispute for unknown or already flagged booking")
		return nil
	}
	log.Info().Str("charge_id", chargeID).Str("dispute_id", d.ID).Msg("booking marked refund_requested")
	return nil
}

func (s *Service) onTransferCreated(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var tr stripe.Transfer
	if err := decode(ev, &tr); err != nil {
		return err
	}

	var chargeID string
	if tr.SourceTransaction != nil {
		chargeID = tr.SourceTransaction.ID
	}
	metaBookingID := tr.Metadata[stripex.MetaBookingID]
	if chargeID == "" && metaBookingID == "" {
		log.Warn().Str("transfer_id", tr.ID).Msg("transfer without source charge or booking metadata")
		return nil
	}

	b, err := s.transferBooking(ctx, chargeID, metaBookingID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("transfer_id", tr.ID).Str("charge_id", chargeID).Msg("transfer for booking not linked yet, asking for redelivery")
		return ErrTransferUnlinked
	}
	if err != nil {
		return err
	}

	gross := b.ChargedAmount()
	row := &domain.PlatformTransaction{
		BookingID:           b.ID,
		BarberID:            b.BarberID,
		GrossAmount:         gross,
		PlatformFee:         b.PlatformFee,
		NetAmount:           gross.Sub(b.PlatformFee),
		StripeTransactionID: tr.ID,
	}
	created, err := s.ledger.Append(ctx, row)
	if err != nil {
		return err
	}
	if !created {
		log.Info().Str("transfer_id", tr.ID).Msg("ledger row already recorded")
	}
	return nil
}

// transferBooking finds the booking a transfer pays out. The charge id is only known once
// payment_intent.succeeded has been processed, so metadata is the fallback.
func (s *Service) transferBooking(ctx context.Context, chargeID, bookingID string) (*domain.Booking, error) {
	if chargeID != "" {
		b, err := s.bookings.GetByChargeID(ctx, chargeID)
		if !errors.Is(err, repository.ErrNotFound) {
			return b, err
		}
	}
	if bookingID != "" {
		return s.bookings.GetByID(ctx, bookingID)
	}
	return nil, repository.ErrNotFound
}

func (s *Service) onAccountUpdated(ctx context.Context, log zerolog.Logger, ev stripe.Event) error {
	var acct stripe.Account
	if err := decode(ev, &acct); err != nil {
		return err
	}
	if err := s.accounts.SyncAccount(ctx, &acct); err != nil {
		return err
	}
	log.Info().Str("account_id", acct.ID).Bool("charges_enabled", acct.ChargesEnabled).Bool("payouts_enabled", acct.PayoutsEnabled).Msg("stripe account synced")
	return nil
}

func (s *Service) confirm(ctx context.Context, log zerolog.Logger, bookingID string, refs domain.PaymentRefs) error {
	if bookingID == "" {
		log.Warn().Msg("payment event without booking reference")
		return nil
	}
	changed, err := s.bookings.Confirm(ctx, bookingID, refs)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("booking_id", bookingID).Msg("payment for unknown booking")
		return nil
	}
	if err != nil {
		return err
	}
	if !changed {
		log.Info().Str("booking_id", bookingID).Msg("booking not eligible for confirmation, no transition")
		return nil
	}

	log.Info().Str("booking_id", bookingID).Msg("booking confirmed")
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		log.Error().Err(err).Str("booking_id", bookingID).Msg("reload confirmed booking failed, skipping notification")
		return nil
	}
	s.dispatch(domain.EventBookingConfirmed, b, s.notifier.NotifyBookingConfirmed)
	return nil
}

// cancel moves a pending booking to cancelled. The client hears about it only when a
// payment attempt failed; an expired checkout was abandoned by the client.
func (s *Service) cancel(ctx context.Context, log zerolog.Logger, bookingID string, refs domain.PaymentRefs, notify bool) error {
	if bookingID == "" {
		log.Warn().Msg("payment event without booking reference")
		return nil
	}
	cancelled, err := s.bookings.CancelPending(ctx, bookingID, refs)
	if err != nil {
		return err
	}
	if !cancelled {
		log.Info().Str("booking_id", bookingID).Msg("booking not pending, cancel skipped")
		return nil
	}

	log.Info().Str("booking_id", bookingID).Msg("booking cancelled")
	if !notify {
		return nil
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		log.Error().Err(err).Str("booking_id", bookingID).Msg("reload cancelled booking failed, skipping notification")
		return nil
	}
	s.dispatch(domain.EventBookingCancelled, b, s.notifier.NotifyBookingCancelled)
	return nil
}

// dispatch sends booking notifications off the request path.
// Failures are logged and left to the retry sweep.
func (s *Service) dispatch(event string, b *domain.Booking, send func(context.Context, *domain.Booking) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("booking_id", b.ID).Msg("notification dispatch panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		if err := send(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("booking_id", b.ID).Str("event", event).Msg("notification dispatch failed")
		}
	}()
}

func (s *Service) bookingForIntent(ctx context.Context, pi *stripe.PaymentIntent) (string, error) {
	if id := pi.Metadata[stripex.MetaBookingID]; id != "" {
		return id, nil
	}
	b, err := s.bookings.GetByPaymentIntentID(ctx, pi.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func decode(ev stripe.Event, v any) error {
	if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}
