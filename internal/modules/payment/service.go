package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kutable/internal/domain"
	"kutable/internal/pkg/stripex"
	"kutable/internal/pkg/validator"
	"kutable/internal/repository"
)

const compensationTimeout = 10 * time.Second

var hundred = decimal.NewFromInt(100)

type Config struct {
	FeeRate  decimal.Decimal
	Currency string
	// AllowLocalHTTP accepts http://localhost return URLs outside production.
	AllowLocalHTTP bool
}

type Service struct {
	gateway  Gateway
	accounts AccountVerifier
	bookings BookingRepository
	catalog  ServiceCatalog
	cfg      Config
	log      zerolog.Logger
}

func NewService(gateway Gateway, accounts AccountVerifier, bookings BookingRepository, catalog ServiceCatalog, cfg Config, log zerolog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{
		gateway:  gateway,
		accounts: accounts,
		bookings: bookings,
		catalog:  catalog,
		cfg:      cfg,
		log:      log.With().Str("component", "payment").Logger(),
	}
}

// PlatformFee is amount × rate rounded to cents.
func PlatformFee(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// Cents converts a currency amount with at most two decimals to integer minor units.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// CreatePaymentIntent charges the client through a PaymentIntent split to the barber's
// Connect account and records one pending booking for it.
func (s *Service) CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (*PaymentIntentResult, error) {
	if err := s.validateIntent(req); err != nil {
		return nil, err
	}
	if err := s.checkService(ctx, req.BarberID, req.ServiceID); err != nil {
		return nil, err
	}

	destination, err := s.accounts.VerifyPayable(ctx, req.BarberID)
	if err != nil {
		return nil, err
	}

	fee := PlatformFee(req.TotalAmount, s.cfg.FeeRate)
	charged := req.TotalAmount
	deposit := decimal.Zero
	if req.DepositAmount != nil {
		deposit = *req.DepositAmount
		charged = deposit
	}
	if fee.GreaterThan(charged) {
		return nil, invalid("depositAmount", "must cover the platform fee")
	}

	bookingID := uuid.NewString()
	clientName := strings.TrimSpace(req.ClientDetails.FirstName + " " + req.ClientDetails.LastName)

	pi, err := s.gateway.CreatePaymentIntent(ctx, stripex.PaymentIntentInput{
		AmountCents:    Cents(charged),
		FeeCents:       Cents(fee),
		Currency:       s.cfg.Currency,
		Destination:    destination,
		Description:    fmt.Sprintf("Booking %s on %s at %s", bookingID, req.AppointmentDate, req.AppointmentTime),
		ReceiptEmail:   req.ClientDetails.Email,
		IdempotencyKey: bookingID,
		Metadata: map[string]string{
			stripex.MetaBookingID:       bookingID,
			stripex.MetaBarberID:        req.BarberID,
			stripex.MetaClientID:        req.ClientID,
			stripex.MetaServiceID:       req.ServiceID,
			stripex.MetaAppointmentDate: req.AppointmentDate,
			stripex.MetaAppointmentTime: req.AppointmentTime,
		},
	})
	if err != nil {
		s.log.Error().Str("barber_id", req.BarberID).Str("stripe_error", stripex.Describe(err)).Msg("create payment intent failed")
		return nil, ErrUpstream
	}

	b := &domain.Booking{
		ID:                    bookingID,
		BarberID:              req.BarberID,
		ClientID:              req.ClientID,
		ServiceID:             req.ServiceID,
		AppointmentDate:       req.AppointmentDate,
		AppointmentTime:       req.AppointmentTime,
		TotalAmount:           req.TotalAmount,
		PlatformFee:           fee,
		DepositAmount:         deposit,
		Status:                domain.BookingPending,
		ClientName:            clientName,
		ClientPhone:           req.ClientDetails.Phone,
		ClientEmail:           strings.ToLower(req.ClientDetails.Email),
		Notes:                 req.ClientDetails.Notes,
		StripePaymentIntentID: pi.ID,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		s.log.Error().Err(err).Str("booking_id", bookingID).Str("payment_intent_id", pi.ID).Msg("booking insert failed, cancelling payment intent")
		s.cancelIntent(ctx, pi.ID)
		return nil, ErrBookingPersist
	}

	s.log.Info().Str("booking_id", bookingID).Str("payment_intent_id", pi.ID).Str("fee", fee.StringFixed(2)).Msg("payment intent created")
	return &PaymentIntentResult{
		ClientSecret:    pi.ClientSecret,
		BookingID:       bookingID,
		PaymentIntentID: pi.ID,
		PlatformFee:     fee,
		Amount:          charged,
	}, nil
}

// CreateCheckoutSession records a pending booking and opens a hosted Checkout Session for it.
// If Stripe refuses the session the booking is deleted again.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (*CheckoutResult, error) {
	b, item, err := s.checkoutBooking(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkService(ctx, b.BarberID, b.ServiceID); err != nil {
		return nil, err
	}

	destination, err := s.accounts.VerifyPayable(ctx, b.BarberID)
	if err != nil {
		return nil, err
	}
	if req.ConnectedAccountID != "" && req.ConnectedAccountID != destination {
		return nil, invalid("connectedAccountId", "does not match the barber's account")
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		s.log.Error().Err(err).Str("barber_id", b.BarberID).Msg("booking insert failed")
		return nil, ErrBookingPersist
	}

	metadata := map[string]string{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[stripex.MetaBookingID] = b.ID

	email := req.CustomerEmail
	if email == "" {
		email = b.ClientEmail
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, stripex.CheckoutInput{
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		Item:              item,
		FeeCents:          Cents(b.PlatformFee),
		Destination:       destination,
		CustomerEmail:     email,
		ClientReferenceID: b.ID,
		IdempotencyKey:    b.ID,
		Metadata:          metadata,
	})
	if err != nil {
		s.log.Error().Str("booking_id", b.ID).Str("stripe_error", stripex.Describe(err)).Msg("create checkout session failed, deleting booking")
		s.deleteBooking(ctx, b.ID)
		return nil, ErrUpstream
	}

	if err := s.bookings.SetCheckoutSession(ctx, b.ID, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("booking_id", b.ID).Str("session_id", sess.ID).Msg("failed to record checkout session id")
	}

	s.log.Info().Str("booking_id", b.ID).Str("session_id", sess.ID).Msg("checkout session created")
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, BookingID: b.ID, PlatformFee: b.PlatformFee}, nil
}

func (s *Service) checkoutBooking(req CreateCheckoutSessionRequest) (*domain.Booking, stripex.LineItem, error) {
	fields := validator.Validate(req)
	if fields == nil {
		fields = map[string]string{}
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode != "" && mode != "payment" {
		fields["mode"] = "only payment mode is supported for bookings"
	}
	if err := s.checkReturnURL(req.SuccessURL); err != nil {
		fields["successUrl"] = err.Error()
	}
	if err := s.checkReturnURL(req.CancelURL); err != nil {
		fields["cancelUrl"] = err.Error()
	}

	md := req.Metadata
	for _, key := range []string{stripex.MetaBarberID, stripex.MetaClientID, stripex.MetaServiceID, stripex.MetaAppointmentDate, stripex.MetaAppointmentTime} {
		if strings.TrimSpace(md[key]) == "" {
			fields["metadata."+key] = "required"
		}
	}
	if d := md[stripex.MetaAppointmentDate]; d != "" && !validator.Date(d) {
		fields["metadata."+stripex.MetaAppointmentDate] = "ymd"
	}
	if tm := md[stripex.MetaAppointmentTime]; tm != "" && !validator.Time(tm) {
		fields["metadata."+stripex.MetaAppointmentTime] = "hhmm"
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}

	var total decimal.Decimal
	item := stripex.LineItem{PriceID: req.PriceID, Name: req.Name, Currency: currency}
	switch {
	case req.Amount != nil:
		total = *req.Amount
		if req.PriceID == "" && strings.TrimSpace(req.Name) == "" {
			fields["name"] = "required with amount"
		}
	case req.PriceID != "":
		parsed, err := decimal.NewFromString(md[stripex.MetaTotalAmount])
		if err != nil {
			fields["metadata."+stripex.MetaTotalAmount] = "required with priceId"
		}
		total = parsed
	default:
		fields["amount"] = "priceId or amount is required"
	}
	if reason := amountProblem(total); reason != "" && fields["amount"] == "" {
		fields["amount"] = reason
	}
	item.AmountCents = Cents(total)

	if len(fields) > 0 {
		return nil, item, &ValidationError{Fields: fields}
	}

	fee := PlatformFee(total, s.cfg.FeeRate)
	return &domain.Booking{
		ID:              uuid.NewString(),
		BarberID:        md[stripex.MetaBarberID],
		ClientID:        md[stripex.MetaClientID],
		ServiceID:       md[stripex.MetaServiceID],
		AppointmentDate: md[stripex.MetaAppointmentDate],
		AppointmentTime: md[stripex.MetaAppointmentTime],
		TotalAmount:     total,
		PlatformFee:     fee,
		Status:          domain.BookingPending,
		ClientName:      md[stripex.MetaClientName],
		ClientPhone:     md[stripex.MetaClientPhone],
		ClientEmail:     strings.ToLower(md[stripex.MetaClientEmail]),
		Notes:           md[stripex.MetaNotes],
	}, item, nil
}

func (s *Service) validateIntent(req CreatePaymentIntentRequest) error {
	fields := validator.Validate(req)
	if fields == nil {
		fields = map[string]string{}
	}
	if reason := amountProblem(req.TotalAmount); reason != "" {
		fields["totalAmount"] = reason
	}
	if req.DepositAmount != nil {
		d := *req.DepositAmount
		if reason := amountProblem(d); reason != "" {
			fields["depositAmount"] = reason
		} else if d.GreaterThan(req.TotalAmount) {
			fields["depositAmount"] = "must not exceed totalAmount"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) checkService(ctx context.Context, barberID, serviceID string) error {
	if s.catalog == nil {
		return nil
	}
	if _, err := s.catalog.GetService(ctx, barberID, serviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}
	return nil
}

func (s *Service) checkReturnURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme == "http" && s.cfg.AllowLocalHTTP && isLocalHost(u.Hostname()) {
		return nil
	}
	return errors.New("must use https")
}

// cancelIntent voids a PaymentIntent whose booking could not be stored. It runs even if the
// request context is already done.
func (s *Service) cancelIntent(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	pi, err := s.gateway.CancelPaymentIntent(cctx, id)
	if err != nil {
		s.log.Error().Str("payment_intent_id", id).Str("stripe_error", stripex.Describe(err)).Msg("compensating cancel failed, orphaned payment intent")
		return
	}
	s.log.Warn().Str("payment_intent_id", id).Str("status", string(pi.Status)).Msg("payment intent cancelled after booking failure")
}

func (s *Service) deleteBooking(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.bookings.Delete(cctx, id); err != nil {
		s.log.Error().Err(err).Str("booking_id", id).Msg("compensating booking delete failed")
	}
}

func amountProblem(d decimal.Decimal) string {
	if !d.IsPositive() {
		return "must be greater than zero"
	}
	if !d.Equal(d.Round(2)) {
		return "must have at most two decimals"
	}
	return ""
}

func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
