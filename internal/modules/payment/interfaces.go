package payment

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
	"kutable/internal/pkg/stripex"
)

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, in stripex.PaymentIntentInput) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, in stripex.CheckoutInput) (*stripe.CheckoutSession, error)
}

// AccountVerifier resolves the barber's payable Connect account.
type AccountVerifier interface {
	VerifyPayable(ctx context.Context, barberID string) (string, error)
}

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	Delete(ctx context.Context, id string) error
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
}

type ServiceCatalog interface {
	GetService(ctx context.Context, barberID, serviceID string) (*domain.BarberService, error)
}
