package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"kutable/internal/domain"
)

type Config struct {
	DefaultRegion string
	MaxAttempts   int
	RetryBatch    int
}

type Service struct {
	repo  Repository
	sms   SMSSender
	email EmailSender
	cfg   Config
	log   zerolog.Logger
}

func NewService(repo Repository, sms SMSSender, email EmailSender, cfg Config, log zerolog.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBatch <= 0 {
		cfg.RetryBatch = 25
	}
	return &Service{
		repo:  repo,
		sms:   sms,
		email: email,
		cfg:   cfg,
		log:   log.With().Str("component", "notifications").Logger(),
	}
}

type SendInput struct {
	Channel   domain.NotificationChannel
	Recipient string
	Template  string
	Payload   map[string]any
	BookingID string
	Event     string
}

// Send records a notification and makes the first provider attempt. The returned row
// reflects the attempt; a provider failure leaves it failed for the retry sweep and
// returns an error wrapping ErrDelivery.
func (s *Service) Send(ctx context.Context, in SendInput) (*domain.Notification, error) {
	to, err := NormalizeRecipient(in.Channel, in.Recipient, s.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}
	msg, err := Render(in.Template, in.Channel, in.Payload)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	event := in.Event
	if event == "" {
		event = domain.EventManual
	}
	n := &domain.Notification{
		Event:     event,
		Channel:   in.Channel,
		Recipient: to,
		Template:  in.Template,
		Payload:   datatypes.JSON(raw),
		Status:    domain.NotificationSending,
	}
	if in.BookingID != "" {
		n.BookingID = &in.BookingID
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}

	if err := s.attempt(ctx, n, msg); err != nil {
		return n, err
	}
	return n, nil
}

// attempt calls the provider once and records the outcome on the row.
func (s *Service) attempt(ctx context.Context, n *domain.Notification, msg Rendered) error {
	providerID, sendErr := s.deliver(ctx, n.Channel, n.Recipient, msg)

	status, lastErr := domain.NotificationQueued, ""
	if sendErr != nil {
		status, lastErr = domain.NotificationFailed, sendErr.Error()
	}
	if err := s.repo.RecordAttempt(ctx, n.ID, status, providerID, lastErr); err != nil {
		s.log.Error().Err(err).Str("notification_id", n.ID).Msg("record attempt failed")
	}
	n.Status = status
	n.Attempts++
	n.ProviderMessageID = providerID
	n.LastError = lastErr

	log := s.log.With().Str("notification_id", n.ID).Str("channel", string(n.Channel)).Str("template", n.Template).Int("attempt", n.Attempts).Logger()
	if sendErr != nil {
		log.Warn().Err(sendErr).Msg("notification send failed")
		return fmt.Errorf("%w: %v", ErrDelivery, sendErr)
	}
	log.Info().Str("provider_message_id", providerID).Msg("notification handed to provider")
	return nil
}

func (s *Service) deliver(ctx context.Context, channel domain.NotificationChannel, to string, msg Rendered) (string, error) {
	switch channel {
	case domain.ChannelSMS:
		return s.sms.SendSMS(ctx, to, msg.Body)
	case domain.ChannelEmail:
		return s.email.SendEmail(ctx, to, msg.Subject, msg.Body)
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidChannel, channel)
	}
}

// NotifyBookingConfirmed texts and emails the client. The channels are independent; a
// failure on one is recorded and does not stop the other.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, b *domain.Booking) error {
	return s.notifyBooking(ctx, b, domain.EventBookingConfirmed, TemplateBookingConfirmed)
}

func (s *Service) NotifyBookingCancelled(ctx context.Context, b *domain.Booking) error {
	return s.notifyBooking(ctx, b, domain.EventBookingCancelled, TemplateBookingCancelled)
}

func (s *Service) notifyBooking(ctx context.Context, b *domain.Booking, event, tmpl string) error {
	name := b.ClientName
	if name == "" {
		name = "there"
	}
	payload := map[string]any{
		"bookingId":  b.ID,
		"clientName": name,
		"date":       b.AppointmentDate,
		"time":       b.AppointmentTime,
		"amount":     b.ChargedAmount().StringFixed(2),
	}

	var errs []error
	if b.ClientPhone != "" {
		_, err := s.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: b.ClientPhone, Template: tmpl, Payload: payload, BookingID: b.ID, Event: event})
		errs = append(errs, err)
	}
	if b.ClientEmail != "" {
		_, err := s.Send(ctx, SendInput{Channel: domain.ChannelEmail, Recipient: b.ClientEmail, Template: tmpl, Payload: payload, BookingID: b.ID, Event: event})
		errs = append(errs, err)
	}
	if b.ClientPhone == "" && b.ClientEmail == "" {
		s.log.Warn().Str("booking_id", b.ID).Str("event", event).Msg("booking has no client contact, nothing sent")
	}
	return errors.Join(errs...)
}

type ClaimInvite struct {
	BusinessName string
	OwnerName    string
	Phone        string
	Email        string
	ClaimURL     string
	ExpiresAt    time.Time
}

func (s *Service) SendClaimInvite(ctx context.Context, in ClaimInvite) error {
	payload := map[string]any{
		"businessName": in.BusinessName,
		"ownerName":    in.OwnerName,
		"claimUrl":     in.ClaimURL,
		"expiresAt":    in.ExpiresAt.UTC().Format("Jan 2 15:04 MST"),
	}

	var errs []error
	if in.Phone != "" {
		_, err := s.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: in.Phone, Template: TemplateClaimInvite, Payload: payload, Event: domain.EventClaimInvite})
		errs = append(errs, err)
	}
	if in.Email != "" {
		_, err := s.Send(ctx, SendInput{Channel: domain.ChannelEmail, Recipient: in.Email, Template: TemplateClaimInvite, Payload: payload, Event: domain.EventClaimInvite})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
