package notification

import (
	"context"
	"strings"

	"kutable/internal/domain"
)

// twilioStatus maps Twilio MessageStatus values; intermediate states are ignored.
func twilioStatus(s string) (domain.NotificationStatus, bool) {
	switch strings.ToLower(s) {
	case "delivered":
		return domain.NotificationDelivered, true
	case "undelivered", "failed":
		return domain.NotificationFailed, true
	default:
		return "", false
	}
}

func resendStatus(eventType string) (domain.NotificationStatus, bool) {
	switch eventType {
	case "email.delivered":
		return domain.NotificationDelivered, true
	case "email.bounced":
		return domain.NotificationBounced, true
	case "email.complained":
		return domain.NotificationComplained, true
	default:
		return "", false
	}
}

// ApplyTwilioStatus records an SMS status callback. It reports whether a row changed.
func (s *Service) ApplyTwilioStatus(ctx context.Context, messageSID, messageStatus, errorCode string) (bool, error) {
	status, ok := twilioStatus(messageStatus)
	if !ok || messageSID == "" {
		return false, nil
	}
	lastErr := ""
	if status == domain.NotificationFailed {
		lastErr = "twilio " + messageStatus
		if errorCode != "" {
			lastErr += " (error " + errorCode + ")"
		}
	}
	n, err := s.repo.ApplyDeliveryStatus(ctx, messageSID, status, lastErr)
	if err != nil {
		return false, err
	}
	s.log.Info().Str("provider_message_id", messageSID).Str("status", string(status)).Int64("rows", n).Msg("sms status callback applied")
	return n > 0, nil
}

// ApplyEmailEvent records a Resend webhook event. It reports whether a row changed.
func (s *Service) ApplyEmailEvent(ctx context.Context, eventType, emailID string) (bool, error) {
	status, ok := resendStatus(eventType)
	if !ok || emailID == "" {
		return false, nil
	}
	lastErr := ""
	if status != domain.NotificationDelivered {
		lastErr = eventType
	}
	n, err := s.repo.ApplyDeliveryStatus(ctx, emailID, status, lastErr)
	if err != nil {
		return false, err
	}
	s.log.Info().Str("provider_message_id", emailID).Str("status", string(status)).Int64("rows", n).Msg("email event applied")
	return n > 0, nil
}
