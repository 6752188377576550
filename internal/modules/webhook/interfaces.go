package webhook

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
)

type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Booking, error)
	GetByChargeID(ctx context.Context, chargeID string) (*domain.Booking, error)
	Confirm(ctx context.Context, id string, refs domain.PaymentRefs) (bool, error)
	CancelPending(ctx context.Context, id string, refs domain.PaymentRefs) (bool, error)
	MarkRefundRequested(ctx context.Context, chargeID, paymentIntentID string) (int64, error)
}

type LedgerRepository interface {
	Append(ctx context.Context, t *domain.PlatformTransaction) (bool, error)
}

type AccountSyncer interface {
	SyncAccount(ctx context.Context, acct *stripe.Account) error
}

type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *domain.Booking) error
	NotifyBookingCancelled(ctx context.Context, b *domain.Booking) error
}
