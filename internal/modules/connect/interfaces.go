package connect

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
)

type Gateway interface {
	CreateExpressAccount(ctx context.Context, email, barberID string) (*stripe.Account, error)
	GetAccount(ctx context.Context, accountID string) (*stripe.Account, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
}

type AccountRepository interface {
	GetByBarberID(ctx context.Context, barberID string) (*domain.StripeAccount, error)
	GetByStripeID(ctx context.Context, stripeAccountID string) (*domain.StripeAccount, error)
	Upsert(ctx context.Context, a *domain.StripeAccount) error
}

type BarberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.BarberProfile, error)
	SetOnboardingCompleted(ctx context.Context, profileID string, completed bool) error
}
