package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlatformTransaction is an immutable ledger row written once per Stripe transfer.
type PlatformTransaction struct {
	ID                  string          `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID           string          `json:"booking_id" gorm:"type:uuid;index"`
	BarberID            string          `json:"barber_id" gorm:"type:uuid;index"`
	GrossAmount         decimal.Decimal `json:"gross_amount" gorm:"type:numeric(10,2);not null"`
	PlatformFee         decimal.Decimal `json:"platform_fee" gorm:"type:numeric(10,2);not null"`
	NetAmount           decimal.Decimal `json:"net_amount" gorm:"type:numeric(10,2);not null"`
	StripeTransactionID string          `json:"stripe_transaction_id" gorm:"uniqueIndex;not null"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (t *PlatformTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
