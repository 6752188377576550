package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"kutable/internal/domain"
	"kutable/internal/modules/connect"
	"kutable/internal/pkg/stripex"
	"kutable/internal/repository"
	"kutable/internal/testutil"
)

const testSecret = "whsec_test_secret"

type recordingNotifier struct {
	mu        sync.Mutex
	calls     []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) NotifyBookingConfirmed(_ context.Context, b *domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, b.ID)
	return n.err
}

func (n *recordingNotifier) NotifyBookingCancelled(_ context.Context, b *domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, b.ID)
	return n.err
}

// count is the number of booking_confirmed dispatches.
func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *recordingNotifier) cancellations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.cancelled...)
}

type harness struct {
	db       *gorm.DB
	svc      *Service
	bookings *repository.BookingRepository
	ledger   *repository.LedgerRepository
	accounts *repository.StripeAccountRepository
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	h := &harness{
		db:       db,
		bookings: repository.NewBookingRepository(db),
		ledger:   repository.NewLedgerRepository(db),
		accounts: repository.NewStripeAccountRepository(db),
		notifier: &recordingNotifier{},
	}
	connectSvc := connect.NewService(nil, h.accounts, repository.NewBarberRepository(db), zerolog.Nop())
	verifier := stripex.New(stripex.Options{SecretKey: "sk_test_x", WebhookSecret: testSecret})
	h.svc = NewService(verifier, h.bookings, h.ledger, connectSvc, h.notifier, time.Second, zerolog.Nop())
	return h
}

func (h *harness) pendingBooking(t *testing.T, total string) *domain.Booking {
	t.Helper()
	amount := decimal.RequireFromString(total)
	b := &domain.Booking{
		BarberID:        "bbbbbbbb-0000-0000-0000-000000000001",
		ClientID:        "cccccccc-0000-0000-0000-000000000001",
		ServiceID:       "dddddddd-0000-0000-0000-000000000001",
		AppointmentDate: "2026-11-02",
		AppointmentTime: "14:30",
		TotalAmount:     amount,
		PlatformFee:     amount.Mul(decimal.RequireFromString("0.01")).Round(2),
		Status:          domain.BookingPending,
		ClientPhone:     "+14155552671",
	}
	require.NoError(t, h.bookings.Create(context.Background(), b))
	return b
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret}).Header
}

func event(id, typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, typ, object))
}

func (h *harness) deliver(t *testing.T, payload []byte) error {
	t.Helper()
	_, err := h.svc.Handle(context.Background(), payload, sign(payload))
	h.svc.Wait()
	return err
}

func TestHandle_RejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	payload := event("evt_1", "payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)

	_, err := h.svc.Handle(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"}).Header
	_, err = h.svc.Handle(context.Background(), payload, forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = h.svc.Handle(context.Background(), append(payload, ' '), sign(payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCheckoutCompleted_ConfirmsOnceAndNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "100.00")
	assert.Equal(t, "1.00", b.PlatformFee.StringFixed(2))

	obj := fmt.Sprintf(`{"id":"cs_test_1","object":"checkout.session","client_reference_id":%q,"payment_intent":"pi_123","metadata":{"bookingId":%q}}`, b.ID, b.ID)
	payload := event("evt_cs_1", "checkout.session.completed", obj)

	require.NoError(t, h.deliver(t, payload))
	require.NoError(t, h.deliver(t, payload))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, "cs_test_1", got.StripeCheckoutSessionID)
	assert.Equal(t, "pi_123", got.StripePaymentIntentID)
	assert.Equal(t, 1, h.notifier.count(), "replayed event must not dispatch again")
}

func TestCheckoutCompleted_FallsBackToClientReference(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "40.00")

	obj := fmt.Sprintf(`{"id":"cs_test_2","object":"checkout.session","client_reference_id":%q}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_cs_2", "checkout.session.completed", obj)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
}

func TestPaymentSucceeded_AfterCheckoutDoesNotRedispatch(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "60.00")

	cs := fmt.Sprintf(`{"id":"cs_test_3","object":"checkout.session","payment_intent":"pi_3","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_a", "checkout.session.completed", cs)))

	pi := fmt.Sprintf(`{"id":"pi_3","object":"payment_intent","latest_charge":"ch_3","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_b", "payment_intent.succeeded", pi)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, "ch_3", got.StripeChargeID, "charge id is attached even without a transition")
	assert.Equal(t, 1, h.notifier.count())
}

func TestPaymentSucceeded_LooksUpByIntentWithoutMetadata(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "25.00")
	require.NoError(t, h.db.Model(&domain.Booking{}).Where("id = ?", b.ID).Update("stripe_payment_intent_id", "pi_lookup").Error)

	require.NoError(t, h.deliver(t, event("evt_c", "payment_intent.succeeded", `{"id":"pi_lookup","object":"payment_intent","latest_charge":"ch_lookup"}`)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, "ch_lookup", got.StripeChargeID)
}

func TestPaymentFailed_CancelsOnlyPending(t *testing.T) {
	h := newHarness(t)
	pending := h.pendingBooking(t, "30.00")
	confirmed := h.pendingBooking(t, "30.00")
	_, err := h.bookings.Confirm(context.Background(), confirmed.ID, domain.PaymentRefs{PaymentIntentID: "pi_ok"})
	require.NoError(t, err)

	for i, id := range []string{pending.ID, confirmed.ID} {
		obj := fmt.Sprintf(`{"id":"pi_f%d","object":"payment_intent","metadata":{"bookingId":%q},"last_payment_error":{"decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`, i, id)
		require.NoError(t, h.deliver(t, event(fmt.Sprintf("evt_f%d", i), "payment_intent.payment_failed", obj)))
	}

	got, err := h.bookings.GetByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	got, err = h.bookings.GetByID(context.Background(), confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status, "a late failure never undoes a confirmation")
	assert.Zero(t, h.notifier.count())
	assert.Equal(t, []string{pending.ID}, h.notifier.cancellations())
}

func TestPaymentSucceededAfterFailure_ConfirmsSameIntent(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "40.00")

	failed := fmt.Sprintf(`{"id":"pi_1","object":"payment_intent","metadata":{"bookingId":%q},"last_payment_error":{"decline_code":"card_declined","message":"Your card was declined."}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_fail", "payment_intent.payment_failed", failed)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCancelled, got.Status)

	succeeded := fmt.Sprintf(`{"id":"pi_1","object":"payment_intent","latest_charge":"ch_1","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_ok", "payment_intent.succeeded", succeeded)))
	require.NoError(t, h.deliver(t, event("evt_ok", "payment_intent.succeeded", succeeded)))

	got, err = h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, "ch_1", got.StripeChargeID)
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, []string{b.ID}, h.notifier.cancellations())
}

func TestPaymentSucceeded_OtherIntentLeavesCancelled(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "40.00")

	failed := fmt.Sprintf(`{"id":"pi_a","object":"payment_intent","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_a", "payment_intent.payment_failed", failed)))
	succeeded := fmt.Sprintf(`{"id":"pi_b","object":"payment_intent","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_b", "payment_intent.succeeded", succeeded)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	assert.Zero(t, h.notifier.count())
}

func TestCheckoutExpired_CancelsPending(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "30.00")

	obj := fmt.Sprintf(`{"id":"cs_exp","object":"checkout.session","client_reference_id":%q}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_exp", "checkout.session.expired", obj)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	assert.Empty(t, h.notifier.cancellations(), "an abandoned checkout is not announced")
}

func TestDisputeCreated_MarksRefundRequested(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "80.00")
	_, err := h.bookings.Confirm(context.Background(), b.ID, domain.PaymentRefs{PaymentIntentID: "pi_d", ChargeID: "ch_d"})
	require.NoError(t, err)

	require.NoError(t, h.deliver(t, event("evt_d", "charge.dispute.created", `{"id":"dp_1","object":"dispute","charge":"ch_d","payment_intent":"pi_d"}`)))

	got, err := h.bookings.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingRefundRequested, got.Status)

	require.NoError(t, h.deliver(t, event("evt_d2", "charge.dispute.created", `{"id":"dp_2","object":"dispute","charge":"ch_unknown"}`)))
}

func TestTransferCreated_AppendsLedgerOnce(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "100.00")
	_, err := h.bookings.Confirm(context.Background(), b.ID, domain.PaymentRefs{PaymentIntentID: "pi_t", ChargeID: "ch_t"})
	require.NoError(t, err)

	payload := event("evt_tr", "transfer.created", `{"id":"tr_1","object":"transfer","amount":9900,"source_transaction":"ch_t"}`)
	require.NoError(t, h.deliver(t, payload))
	require.NoError(t, h.deliver(t, payload))

	rows, err := h.ledger.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "100.00", rows[0].GrossAmount.StringFixed(2))
	assert.Equal(t, "1.00", rows[0].PlatformFee.StringFixed(2))
	assert.Equal(t, "99.00", rows[0].NetAmount.StringFixed(2))
	assert.Equal(t, "tr_1", rows[0].StripeTransactionID)
	assert.Equal(t, b.BarberID, rows[0].BarberID)
}

func TestTransferCreated_BeforeChargeIsLinkedIsRedelivered(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "100.00")

	completed := fmt.Sprintf(`{"id":"cs_9","object":"checkout.session","payment_intent":"pi_9","client_reference_id":%q}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_cs9", "checkout.session.completed", completed)))

	transfer := event("evt_tr9", "transfer.created", `{"id":"tr_9","object":"transfer","amount":9900,"source_transaction":"ch_9"}`)
	err := h.deliver(t, transfer)
	require.ErrorIs(t, err, ErrTransferUnlinked)

	rows, err := h.ledger.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, h.deliver(t, event("evt_pi9", "payment_intent.succeeded", `{"id":"pi_9","object":"payment_intent","latest_charge":"ch_9"}`)))
	require.NoError(t, h.deliver(t, transfer))

	rows, err = h.ledger.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tr_9", rows[0].StripeTransactionID)
	assert.Equal(t, 1, h.notifier.count())
}

func TestTransferCreated_FallsBackToBookingMetadata(t *testing.T) {
	h := newHarness(t)
	b := h.pendingBooking(t, "50.00")

	obj := fmt.Sprintf(`{"id":"tr_m","object":"transfer","amount":4950,"source_transaction":"ch_unseen","metadata":{"bookingId":%q}}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_trm", "transfer.created", obj)))

	rows, err := h.ledger.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.50", rows[0].PlatformFee.StringFixed(2))
}

func TestAccountUpdated_SyncsKnownAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	profile := &domain.BarberProfile{BusinessName: "Fade Factory", Slug: "fade-factory"}
	require.NoError(t, h.db.Create(profile).Error)
	require.NoError(t, h.accounts.Upsert(ctx, &domain.StripeAccount{
		BarberID:        profile.ID,
		StripeAccountID: "acct_1",
		AccountStatus:   domain.StripeAccountPending,
	}))

	obj := `{"id":"acct_1","object":"account","charges_enabled":true,"payouts_enabled":true,"details_submitted":true,"capabilities":{"card_payments":"active","transfers":"active"}}`
	require.NoError(t, h.deliver(t, event("evt_acct", "account.updated", obj)))

	row, err := h.accounts.GetByStripeID(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StripeAccountActive, row.AccountStatus)
	assert.True(t, row.ChargesEnabled)

	var reloaded domain.BarberProfile
	require.NoError(t, h.db.First(&reloaded, "id = ?", profile.ID).Error)
	assert.True(t, reloaded.OnboardingCompleted)
}

func TestHandle_UnknownEventIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	ev, err := h.svc.Handle(context.Background(), event("evt_x", "customer.created", `{"id":"cus_1","object":"customer"}`), sign(event("evt_x", "customer.created", `{"id":"cus_1","object":"customer"}`)))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", string(ev.Type))
}

func TestHandle_UnknownBookingIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	obj := `{"id":"cs_ghost","object":"checkout.session","client_reference_id":"eeeeeeee-0000-0000-0000-000000000000"}`
	assert.NoError(t, h.deliver(t, event("evt_ghost", "checkout.session.completed", obj)))
	assert.Zero(t, h.notifier.count())
}

func TestDispatch_FailureDoesNotFailWebhook(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("twilio down")
	b := h.pendingBooking(t, "45.00")

	obj := fmt.Sprintf(`{"id":"cs_n","object":"checkout.session","client_reference_id":%q}`, b.ID)
	require.NoError(t, h.deliver(t, event("evt_n", "checkout.session.completed", obj)))
	assert.Equal(t, 1, h.notifier.count())
}
