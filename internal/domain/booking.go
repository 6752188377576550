package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingRefundRequested BookingStatus = "refund_requested"
	BookingCompleted       BookingStatus = "completed"
)

type Booking struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey"`
	BarberID        string          `json:"barber_id" gorm:"type:uuid;not null;index"`
	ClientID        string          `json:"client_id" gorm:"type:uuid;not null;index"`
	ServiceID       string          `json:"service_id" gorm:"type:uuid;not null"`
	AppointmentDate string          `json:"appointment_date" gorm:"type:varchar(10);not null"`
	AppointmentTime string          `json:"appointment_time" gorm:"type:varchar(5);not null"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2);not null"`
	PlatformFee     decimal.Decimal `json:"platform_fee" gorm:"type:numeric(10,2);not null"`
	DepositAmount   decimal.Decimal `json:"deposit_amount" gorm:"type:numeric(10,2);not null;default:0"`
	Status          BookingStatus   `json:"status" gorm:"type:varchar(32);not null;index"`

	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	Notes       string `json:"notes,omitempty" gorm:"type:text"`

	StripePaymentIntentID   string `json:"stripe_payment_intent_id,omitempty" gorm:"index"`
	StripeCheckoutSessionID string `json:"stripe_checkout_session_id,omitempty" gorm:"index"`
	StripeChargeID          string `json:"stripe_charge_id,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// ChargedAmount is what the client pays now: the deposit when one was taken, otherwise the total.
func (b *Booking) ChargedAmount() decimal.Decimal {
	if b.DepositAmount.IsPositive() {
		return b.DepositAmount
	}
	return b.TotalAmount
}

// PaymentRefs carries the Stripe identifiers learned while reconciling a booking.
type PaymentRefs struct {
	PaymentIntentID   string
	CheckoutSessionID string
	ChargeID          string
}
