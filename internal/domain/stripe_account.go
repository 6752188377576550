package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StripeAccountStatus string

const (
	StripeAccountPending             StripeAccountStatus = "pending"
	StripeAccountPendingVerification StripeAccountStatus = "pending_verification"
	StripeAccountActive              StripeAccountStatus = "active"
)

// StripeAccount links a barber to a Connect express account, one row per barber.
type StripeAccount struct {
	ID               string              `json:"id" gorm:"type:uuid;primaryKey"`
	BarberID         string              `json:"barber_id" gorm:"type:uuid;uniqueIndex;not null"`
	StripeAccountID  string              `json:"stripe_account_id" gorm:"uniqueIndex;not null"`
	AccountStatus    StripeAccountStatus `json:"account_status" gorm:"type:varchar(32);not null"`
	ChargesEnabled   bool                `json:"charges_enabled"`
	PayoutsEnabled   bool                `json:"payouts_enabled"`
	DetailsSubmitted bool                `json:"details_submitted"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (a *StripeAccount) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// OnboardingComplete reports whether the barber can take payouts end to end.
func (a *StripeAccount) OnboardingComplete() bool {
	return a.DetailsSubmitted && a.ChargesEnabled && a.PayoutsEnabled
}
