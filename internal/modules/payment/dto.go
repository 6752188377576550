package payment

import "github.com/shopspring/decimal"

type ClientDetails struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Phone     string `json:"phone" binding:"required,max=32"`
	Email     string `json:"email" binding:"required,email"`
	Notes     string `json:"notes" binding:"max=1000"`
}

type CreatePaymentIntentRequest struct {
	BarberID        string           `json:"barberId" binding:"required"`
	ClientID        string           `json:"clientId" binding:"required"`
	ServiceID       string           `json:"serviceId" binding:"required"`
	AppointmentDate string           `json:"appointmentDate" binding:"required,ymd"`
	AppointmentTime string           `json:"appointmentTime" binding:"required,hhmm"`
	ClientDetails   ClientDetails    `json:"clientDetails"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	DepositAmount   *decimal.Decimal `json:"depositAmount"`
}

type PaymentIntentResult struct {
	ClientSecret    string
	BookingID       string
	PaymentIntentID string
	PlatformFee     decimal.Decimal
	Amount          decimal.Decimal
}

// CreateCheckoutSessionRequest describes a hosted checkout. Booking fields travel in Metadata
// using the same keys as CreatePaymentIntentRequest.
type CreateCheckoutSessionRequest struct {
	Mode               string            `json:"mode"`
	SuccessURL         string            `json:"successUrl" binding:"required"`
	CancelURL          string            `json:"cancelUrl" binding:"required"`
	PriceID            string            `json:"priceId"`
	Amount             *decimal.Decimal  `json:"amount"`
	Currency           string            `json:"currency"`
	Name               string            `json:"name"`
	CustomerEmail      string            `json:"customerEmail" binding:"omitempty,email"`
	ConnectedAccountID string            `json:"connectedAccountId"`
	Metadata           map[string]string `json:"metadata"`
}

type CheckoutResult struct {
	SessionID   string
	URL         string
	BookingID   string
	PlatformFee decimal.Decimal
}
